package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CommandFields 提供 command/version/side 字段，供缓存命令与进度日志复用。
func CommandFields(command, versionID, side string) logrus.Fields {
	fields := logrus.Fields{
		"action":  "cache_command",
		"command": command,
		"version": versionID,
	}
	if side != "" {
		fields["side"] = side
	}
	return fields
}
