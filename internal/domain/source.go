package domain

// Source represents the venue a pool creation event was detected on.
type Source string

const (
	SourceRaydium           Source = "raydium"
	SourcePumpFunGraduation Source = "pumpfun_graduation"
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s Source) IsValid() bool {
	return s == SourceRaydium || s == SourcePumpFunGraduation
}
