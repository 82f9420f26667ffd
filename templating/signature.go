package templating

import (
	"bytes"
	"html/template"
	"strings"
)

type SignatureKind int

const (
	SignatureMissing SignatureKind = iota
	SignatureStorageURL
	SignatureDataURI
	SignatureExternalURL
	SignatureInvalid
)

const storageObjectPath = "/storage/v1/object/"

func ClassifySignature(value string) SignatureKind {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return SignatureMissing
	case strings.HasPrefix(value, "data:image/"):
		return SignatureDataURI
	case strings.HasPrefix(value, "https://") || strings.HasPrefix(value, "http://"):
		if strings.Contains(value, storageObjectPath) {
			return SignatureStorageURL
		}
		return SignatureExternalURL
	}
	return SignatureInvalid
}

var signatureTemplates = template.Must(template.New("signature").Parse(`
{{- define "image" -}}
<img src="{{.Src}}" alt="{{.Alt}}" class="signature-image" style="max-width:300px;max-height:120px;" />
{{- end -}}
{{- define "awaiting" -}}
<div class="signature-placeholder" style="border-bottom:1px solid #999;color:#999;font-style:italic;padding:24px 0 4px;">{{.Text}}</div>
{{- end -}}
{{- define "invalid" -}}
<div class="signature-invalid" style="color:#b00020;">{{.Text}}</div>
{{- end -}}
`))

// SignatureMarkup renders a resolved signature value as HTML. It never
// fails: missing and unusable values get their own placeholder markup.
func (l Locale) SignatureMarkup(value string) string {
	var (
		name string
		data any
	)
	switch ClassifySignature(value) {
	case SignatureMissing:
		name, data = "awaiting", struct{ Text string }{l.AwaitingSignature}
	case SignatureStorageURL, SignatureDataURI, SignatureExternalURL:
		// the value was classified above, so it is a URL we mean to embed
		name, data = "image", struct {
			Src template.URL
			Alt string
		}{template.URL(strings.TrimSpace(value)), l.SignatureAlt}
	default:
		name, data = "invalid", struct{ Text string }{l.InvalidSignature}
	}

	var buf bytes.Buffer
	if err := signatureTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return template.HTMLEscapeString(l.InvalidSignature)
	}
	return buf.String()
}
