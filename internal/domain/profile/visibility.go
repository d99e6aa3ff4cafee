package profile

// Visibility selects the rule that gates a paragraph.
type Visibility string

const (
	VisibilityDefault          Visibility = "default"
	VisibilityHidden           Visibility = "hidden"
	VisibilityShow             Visibility = "show"
	VisibilityShowIfNotSecret  Visibility = "not_secret"
	VisibilityShowIfFriendly   Visibility = "friendly"
	VisibilityShowIfLimited    Visibility = "limited"
	VisibilityShowIfObserver   Visibility = "observer"
	VisibilityShowIfOwner      Visibility = "owner"
	VisibilityShowIfGM         Visibility = "gm"
	FallbackDefaultVisibility             = VisibilityShowIfNotSecret
)

// Visibilities lists every mode in presentation order.
var Visibilities = []Visibility{
	VisibilityDefault,
	VisibilityHidden,
	VisibilityShow,
	VisibilityShowIfNotSecret,
	VisibilityShowIfFriendly,
	VisibilityShowIfLimited,
	VisibilityShowIfObserver,
	VisibilityShowIfOwner,
	VisibilityShowIfGM,
}

// Valid reports whether v is a known mode.
func (v Visibility) Valid() bool {
	for _, known := range Visibilities {
		if v == known {
			return true
		}
	}
	return false
}

// IsDefault reports whether v defers to the world default.
func (v Visibility) IsDefault() bool {
	return v == "" || v == VisibilityDefault
}
