package versions

// Version 是目录服务中的一个可安装版本，加载后不可变。
type Version struct {
	ID          string  `json:"uuid"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Label 返回展示名，缺省时退回 ID。
func (v Version) Label() string {
	if v.Name != nil && *v.Name != "" {
		return *v.Name
	}
	return v.ID
}

// PromptLabel 用于确认弹窗，缺少名称时输出 "version <id>"。
func (v Version) PromptLabel() string {
	if v.Name != nil && *v.Name != "" {
		return *v.Name
	}
	return "version " + v.ID
}

// DescriptiveLabel 返回 "名称: 描述" 形式的标签，用于版本选择列表。
func (v Version) DescriptiveLabel() string {
	if v.Name == nil || *v.Name == "" {
		return v.ID
	}
	if v.Description != nil && *v.Description != "" {
		return *v.Name + ": " + *v.Description
	}
	return *v.Name
}
