package templating

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/mbolis/cerimonial/model"
	"golang.org/x/text/unicode/norm"
)

// hashedFields is the exact subset of a document that its hash covers.
// Changing anything outside of it, notes for instance, keeps the hash.
type hashedFields struct {
	ID            string   `json:"id"`
	ClientName    string   `json:"client_name"`
	ClientEmail   string   `json:"client_email"`
	ClientPhone   string   `json:"client_phone"`
	ClientAddress string   `json:"client_address"`
	EventType     string   `json:"event_type"`
	EventDate     string   `json:"event_date"`
	TotalPrice    *float64 `json:"total_price"`
	CreatedAt     string   `json:"created_at"`
	Version       int      `json:"version"`
}

// DocumentHash returns the upper-case hex SHA-256 of the canonical JSON of
// the hashed fields. Values are hashed as stored, except that strings are
// NFC-normalised: composed and decomposed accents are the same text.
func DocumentHash(doc model.Document) string {
	f := hashedFields{
		ID:            nfc(doc.ID),
		ClientName:    nfc(doc.ClientName),
		ClientEmail:   nfc(doc.ClientEmail),
		ClientPhone:   nfc(doc.ClientPhone),
		ClientAddress: nfc(doc.ClientAddress),
		EventType:     nfc(doc.EventType),
		EventDate:     nfc(doc.EventDate),
		TotalPrice:    doc.TotalPrice,
		Version:       doc.Version,
	}
	if f.TotalPrice != nil && (math.IsNaN(*f.TotalPrice) || math.IsInf(*f.TotalPrice, 0)) {
		f.TotalPrice = nil
	}
	if !doc.CreatedAt.IsZero() {
		f.CreatedAt = doc.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	// only finite floats and strings remain, Marshal cannot fail
	data, _ := json.Marshal(f)
	if canonical, err := jcs.Transform(data); err == nil {
		data = canonical
	}

	sum := sha256.Sum256(data)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func nfc(s string) string {
	return norm.NFC.String(s)
}
