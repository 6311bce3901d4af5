package routes

import (
	"github.com/cachesync/cachesync/internal/dispatch"
	"github.com/cachesync/cachesync/internal/versions"
)

type outcomePayload struct {
	Version string `json:"uuid"`
	Command string `json:"command"`
	Side    string `json:"side"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

type versionPayload struct {
	versions.Version
	Label            string `json:"label"`
	DescriptiveLabel string `json:"descriptive_label"`
}

func encodeOutcome(out dispatch.Outcome) outcomePayload {
	payload := outcomePayload{
		Version: out.VersionID,
		Command: string(out.Command),
		Side:    out.Side.String(),
		OK:      out.OK(),
	}
	if out.Err != nil {
		payload.Error = out.Err.Error()
	}
	return payload
}

func encodeOutcomes(outs []dispatch.Outcome) []outcomePayload {
	result := make([]outcomePayload, 0, len(outs))
	for _, out := range outs {
		result = append(result, encodeOutcome(out))
	}
	return result
}

func encodeVersions(list []versions.Version) []versionPayload {
	result := make([]versionPayload, 0, len(list))
	for _, v := range list {
		result = append(result, versionPayload{
			Version:          v,
			Label:            v.Label(),
			DescriptiveLabel: v.DescriptiveLabel(),
		})
	}
	return result
}
