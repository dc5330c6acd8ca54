package captionforge

// CaptionOutput is the encoded result of a successful Caption call.
type CaptionOutput struct {
	Bytes  []byte
	Format Format
}

// Len returns the number of encoded bytes.
func (o CaptionOutput) Len() int { return len(o.Bytes) }
