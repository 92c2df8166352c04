package leads

import (
	"io"
	"strings"

	"github.com/emersion/go-vcard"

	"renda-edge/internal/storage"
)

// ContactCard converts a contact message into a vCard 4.0 card.
func ContactCard(msg *storage.ContactMessage) vcard.Card {
	card := make(vcard.Card)
	card.SetValue(vcard.FieldUID, "urn:renda:contact:"+msg.ID)
	card.SetValue(vcard.FieldFormattedName, msg.Name)

	given, family := splitName(msg.Name)
	card.SetName(&vcard.Name{GivenName: given, FamilyName: family})

	card.Add(vcard.FieldEmail, &vcard.Field{
		Value:  msg.Email,
		Params: vcard.Params{vcard.ParamType: {vcard.TypeHome}},
	})
	if msg.Phone != "" {
		card.Add(vcard.FieldTelephone, &vcard.Field{
			Value:  msg.Phone,
			Params: vcard.Params{vcard.ParamType: {vcard.TypeCell}},
		})
	}

	note := msg.Message
	if msg.ProductSlug != "" {
		note = "Produto: " + msg.ProductSlug + "\n" + note
	}
	card.SetValue(vcard.FieldNote, note)
	card.SetRevision(msg.CreatedAt)
	vcard.ToV4(card)
	return card
}

func splitName(name string) (given, family string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

// WriteVCards encodes every message as a card on w.
func WriteVCards(w io.Writer, msgs []*storage.ContactMessage) error {
	enc := vcard.NewEncoder(w)
	for _, msg := range msgs {
		if err := enc.Encode(ContactCard(msg)); err != nil {
			return err
		}
	}
	return nil
}
