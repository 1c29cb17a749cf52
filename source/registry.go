package source

// NewDefaultRegistry builds a Registry with every built-in extractor
// registered, more-specific detectors first (chat/email/html/pdf/office
// before the generic text fallback), mirroring parser.NewRegistry's
// built-in-parser bootstrap.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewChatExtractor())
	r.Register(NewEmailExtractor())
	r.Register(NewHTMLExtractor())
	r.Register(NewPDFExtractor())
	r.Register(NewXLSXExtractor())
	r.Register(NewLegacyOfficeExtractor())
	r.Register(NewMarkdownExtractor())
	r.Register(NewTextExtractor())
	return r
}
