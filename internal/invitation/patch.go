package invitation

import "fmt"

// ErrPayloadMismatch 表示补丁类型与目标区块类型不一致。
var ErrPayloadMismatch = fmt.Errorf("patch payload does not match block kind")

// HeaderPatch 中为 nil 的字段保持原值。下同。
type HeaderPatch struct {
	GroomName *string `json:"groom_name,omitempty"`
	BrideName *string `json:"bride_name,omitempty"`
	Subtitle  *string `json:"subtitle,omitempty"`
	Date      *string `json:"date,omitempty"`
	Time      *string `json:"time,omitempty"`
}

type ContentPatch struct {
	Title    *string `json:"title,omitempty"`
	Body     *string `json:"body,omitempty"`
	RichText *bool   `json:"rich_text,omitempty"`
}

type ImagePatch struct {
	URL     *string      `json:"url,omitempty"`
	Alt     *string      `json:"alt,omitempty"`
	Caption *string      `json:"caption,omitempty"`
	Ratio   *AspectRatio `json:"ratio,omitempty"`
}

// ContactPatch 的 Contacts 为 nil 时保持原列表；非 nil 时整体替换
// （列表内条目没有稳定 ID，无法做更细粒度合并）。
type ContactPatch struct {
	Title    *string   `json:"title,omitempty"`
	Contacts []Contact `json:"contacts,omitempty"`
}

type LocationPatch struct {
	VenueName     *string   `json:"venue_name,omitempty"`
	Address       *string   `json:"address,omitempty"`
	DetailAddress *string   `json:"detail_address,omitempty"`
	Coordinates   *GeoPoint `json:"coordinates,omitempty"`
	ParkingInfo   *string   `json:"parking_info,omitempty"`
	TransportInfo *string   `json:"transport_info,omitempty"`
}

type RSVPPatch struct {
	Enabled     *bool   `json:"enabled,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

// Patch 描述对单个区块的局部更新：payload 字段合并进现有 payload，
// 不整体替换；Style 按 key 合并。
type Patch struct {
	Style map[string]any `json:"style,omitempty"`

	Header   *HeaderPatch   `json:"header,omitempty"`
	Content  *ContentPatch  `json:"content,omitempty"`
	Image    *ImagePatch    `json:"image,omitempty"`
	Contact  *ContactPatch  `json:"contact,omitempty"`
	Location *LocationPatch `json:"location,omitempty"`
	RSVP     *RSVPPatch     `json:"rsvp,omitempty"`
}

func applyPatch(b *Block, p Patch) error {
	if err := checkPatchKind(b.Kind, p); err != nil {
		return err
	}

	if p.Style != nil {
		if b.Style == nil {
			b.Style = make(map[string]any, len(p.Style))
		}
		for k, v := range p.Style {
			b.Style[k] = v
		}
	}

	switch {
	case p.Header != nil:
		setString(&b.Header.GroomName, p.Header.GroomName)
		setString(&b.Header.BrideName, p.Header.BrideName)
		setString(&b.Header.Subtitle, p.Header.Subtitle)
		setString(&b.Header.Date, p.Header.Date)
		setString(&b.Header.Time, p.Header.Time)
	case p.Content != nil:
		setString(&b.Content.Title, p.Content.Title)
		setString(&b.Content.Body, p.Content.Body)
		if p.Content.RichText != nil {
			b.Content.RichText = *p.Content.RichText
		}
	case p.Image != nil:
		setString(&b.Image.URL, p.Image.URL)
		setString(&b.Image.Alt, p.Image.Alt)
		setString(&b.Image.Caption, p.Image.Caption)
		if p.Image.Ratio != nil {
			b.Image.Ratio = *p.Image.Ratio
		}
	case p.Contact != nil:
		setString(&b.Contact.Title, p.Contact.Title)
		if p.Contact.Contacts != nil {
			b.Contact.Contacts = append([]Contact(nil), p.Contact.Contacts...)
		}
	case p.Location != nil:
		setString(&b.Location.VenueName, p.Location.VenueName)
		setString(&b.Location.Address, p.Location.Address)
		setString(&b.Location.DetailAddress, p.Location.DetailAddress)
		if p.Location.Coordinates != nil {
			g := *p.Location.Coordinates
			b.Location.Coordinates = &g
		}
		setString(&b.Location.ParkingInfo, p.Location.ParkingInfo)
		setString(&b.Location.TransportInfo, p.Location.TransportInfo)
	case p.RSVP != nil:
		if p.RSVP.Enabled != nil {
			b.RSVP.Enabled = *p.RSVP.Enabled
		}
		setString(&b.RSVP.Title, p.RSVP.Title)
		setString(&b.RSVP.Description, p.RSVP.Description)
		setString(&b.RSVP.DueDate, p.RSVP.DueDate)
	}
	return nil
}

func checkPatchKind(kind Kind, p Patch) error {
	var patchKind Kind
	switch {
	case p.Header != nil:
		patchKind = KindHeader
	case p.Content != nil:
		patchKind = KindContent
	case p.Image != nil:
		patchKind = KindImage
	case p.Contact != nil:
		patchKind = KindContact
	case p.Location != nil:
		patchKind = KindLocation
	case p.RSVP != nil:
		patchKind = KindRSVP
	default:
		// 纯 Style 补丁对任何类型都合法。
		return nil
	}
	if patchKind != kind {
		return fmt.Errorf("%w: patch is %q, block is %q", ErrPayloadMismatch, patchKind, kind)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
