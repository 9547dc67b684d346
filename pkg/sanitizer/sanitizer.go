package sanitizer

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

// SanitizeOccupantRef cleans up an occupant reference such as a plate number
// or guest vehicle id. Case is preserved.
func SanitizeOccupantRef(input string) string {
	p := Pipeline{
		StripControl,
		TrimAndNormalize,
	}
	return p.Apply(input)
}
