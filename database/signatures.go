package database

import (
	"strings"

	"github.com/mbolis/cerimonial/model"
	"github.com/mbolis/cerimonial/templating"
)

// SignatureResolver finds the signature images for a document: the
// company's comes from configuration, the client's from the stored row.
type SignatureResolver struct {
	CompanyURL string
}

func (r SignatureResolver) ResolveCompanySignatureURL() string {
	return strings.TrimSpace(r.CompanyURL)
}

func (r SignatureResolver) ResolveClientSignature(doc model.Document) string {
	return strings.TrimSpace(doc.ClientSignature)
}

func (r SignatureResolver) Resolve(doc model.Document) templating.Signatures {
	return templating.Signatures{
		Client:  r.ResolveClientSignature(doc),
		Company: r.ResolveCompanySignatureURL(),
	}
}
