package tags

import (
	"slices"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
)

// FlagTagProvider reads tags stored on the entity under "<namespace>.tags",
// either as a JSON array of strings or as a comma list.
type FlagTagProvider struct {
	Namespace string
}

// NewFlagTagProvider returns the provider for the "tagger" namespace.
func NewFlagTagProvider() *FlagTagProvider {
	return &FlagTagProvider{Namespace: "tagger"}
}

func (p *FlagTagProvider) Name() string { return p.Namespace }

// HasTag reports whether tag is listed on e.
func (p *FlagTagProvider) HasTag(e *entity.Entity, tag string) bool {
	res := e.Flag(p.Namespace + ".tags")
	switch {
	case !res.Exists():
		return false
	case res.IsArray():
		for _, t := range res.Array() {
			if t.String() == tag {
				return true
			}
		}
		return false
	default:
		return slices.Contains(profile.SplitTags(res.String()), tag)
	}
}

// VisionChannelProvider resolves vision channels stored under
// "perceptive.VisionChannelsFlag" as {channelID: {Emits, Receives}}.
// Channel ids are translated to names through a world-level registry.
type VisionChannelProvider struct {
	Channels   map[string]string // channel id -> display name
	ForceLower bool
}

// NewVisionChannelProvider returns a provider that lower-cases channel names.
func NewVisionChannelProvider(channels map[string]string) *VisionChannelProvider {
	return &VisionChannelProvider{Channels: channels, ForceLower: true}
}

func (p *VisionChannelProvider) Name() string { return "perceptive" }

// ChannelNames lists the names of channels e emits and/or receives.
func (p *VisionChannelProvider) ChannelNames(e *entity.Entity, emits, receives bool) []string {
	if e == nil || e.ID == "" || (!emits && !receives) || len(p.Channels) == 0 {
		return nil
	}
	flags := e.Flag("perceptive.VisionChannelsFlag")
	if !flags.IsObject() {
		return nil
	}

	var out []string
	flags.ForEach(func(key, data gjson.Result) bool {
		if (emits && data.Get("Emits").Bool()) || (receives && data.Get("Receives").Bool()) {
			if name, ok := p.Channels[key.String()]; ok {
				if p.ForceLower {
					name = cases.Lower(language.Und).String(name)
				}
				out = append(out, name)
			}
		}
		return true
	})
	return out
}
