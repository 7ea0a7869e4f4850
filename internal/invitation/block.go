package invitation

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind 表示区块类型。清单是封闭的：新增类型必须同步扩展
// NewBlock / Complete / applyPatch 三处 switch。
type Kind string

const (
	KindHeader   Kind = "header"
	KindContent  Kind = "content"
	KindImage    Kind = "image"
	KindContact  Kind = "contact"
	KindLocation Kind = "location"
	KindRSVP     Kind = "rsvp"
)

// AspectRatio 是图片区块的裁剪比例。
type AspectRatio string

const (
	RatioSquare    AspectRatio = "square"
	RatioPortrait  AspectRatio = "portrait"
	RatioLandscape AspectRatio = "landscape"
)

// ErrUnknownKind 表示请求的区块类型不在固定清单中。
var ErrUnknownKind = fmt.Errorf("unknown block kind")

// HeaderPayload 是邀请函头部：新郎/新娘姓名与婚礼日期时间。
type HeaderPayload struct {
	GroomName string `json:"groom_name"`
	BrideName string `json:"bride_name"`
	Subtitle  string `json:"subtitle"`
	Date      string `json:"date"` // ISO 日期（yyyy-MM-dd）
	Time      string `json:"time"` // HH:mm
}

// ContentPayload 是自由文本区块。
type ContentPayload struct {
	Title    string `json:"title,omitempty"`
	Body     string `json:"body"`
	RichText bool   `json:"rich_text"`
}

// ImagePayload 是图片区块。URL 可能是外链，也可能是 user-assets 的 objectKey，
// 发布时由 worker 决定如何内联。
type ImagePayload struct {
	URL     string      `json:"url"`
	Alt     string      `json:"alt"`
	Caption string      `json:"caption"`
	Ratio   AspectRatio `json:"ratio"`
}

// Contact 是单个联系人条目。Relation 常见取值为 "groom"/"bride"，
// 但不做强校验（旧画布格式只认这两种，见 canvas 包）。
type Contact struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
	Phone    string `json:"phone"`
}

// ContactPayload 是联系人区块，保序。
type ContactPayload struct {
	Title    string    `json:"title,omitempty"`
	Contacts []Contact `json:"contacts"`
}

// GeoPoint 表示经纬度。
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationPayload 是婚礼场地区块。
type LocationPayload struct {
	VenueName     string    `json:"venue_name"`
	Address       string    `json:"address"`
	DetailAddress string    `json:"detail_address,omitempty"`
	Coordinates   *GeoPoint `json:"coordinates,omitempty"`
	ParkingInfo   string    `json:"parking_info,omitempty"`
	TransportInfo string    `json:"transport_info,omitempty"`
}

// RSVPPayload 是出席回执区块。
type RSVPPayload struct {
	Enabled     bool   `json:"enabled"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date,omitempty"`
}

// Block 是文档中的单个区块。除公共字段外，六个 payload 指针中
// 恰好一个非 nil，且与 Kind 一致。
type Block struct {
	ID      string         `json:"id"`
	Kind    Kind           `json:"kind"`
	Order   int            `json:"order"`
	Visible bool           `json:"visible"`
	Editing bool           `json:"-"` // 仅编辑器 UI 使用，不持久化
	Style   map[string]any `json:"style,omitempty"`

	Header   *HeaderPayload   `json:"header,omitempty"`
	Content  *ContentPayload  `json:"content,omitempty"`
	Image    *ImagePayload    `json:"image,omitempty"`
	Contact  *ContactPayload  `json:"contact,omitempty"`
	Location *LocationPayload `json:"location,omitempty"`
	RSVP     *RSVPPayload     `json:"rsvp,omitempty"`
}

// NewBlock 创建指定类型的区块，payload 填充为"空但可渲染"的默认值，
// 保证新区块无需任何编辑即可进入渲染管线。
func NewBlock(kind Kind) (Block, error) {
	b := Block{
		ID:      uuid.NewString(),
		Kind:    kind,
		Visible: true,
	}
	switch kind {
	case KindHeader:
		b.Header = &HeaderPayload{}
	case KindContent:
		b.Content = &ContentPayload{}
	case KindImage:
		b.Image = &ImagePayload{Ratio: RatioSquare}
	case KindContact:
		b.Contact = &ContactPayload{Contacts: []Contact{}}
	case KindLocation:
		b.Location = &LocationPayload{}
	case KindRSVP:
		b.RSVP = &RSVPPayload{Enabled: true}
	default:
		return Block{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return b, nil
}

// Complete 判定区块是否满足类型相关的必填字段：
// header 需要双方姓名，location 需要场地名与地址，其余类型无硬性要求。
func (b Block) Complete() bool {
	switch b.Kind {
	case KindHeader:
		return b.Header != nil && b.Header.GroomName != "" && b.Header.BrideName != ""
	case KindLocation:
		return b.Location != nil && b.Location.VenueName != "" && b.Location.Address != ""
	default:
		return true
	}
}

// Clone 深拷贝区块并分配新 ID。Style、联系人列表与坐标都按值复制，
// 因此复制件的后续编辑不会影响源区块。
func (b Block) Clone() Block {
	c := b
	c.ID = uuid.NewString()
	if b.Style != nil {
		c.Style = make(map[string]any, len(b.Style))
		for k, v := range b.Style {
			c.Style[k] = v
		}
	}
	switch {
	case b.Header != nil:
		p := *b.Header
		c.Header = &p
	case b.Content != nil:
		p := *b.Content
		c.Content = &p
	case b.Image != nil:
		p := *b.Image
		c.Image = &p
	case b.Contact != nil:
		p := ContactPayload{Title: b.Contact.Title}
		p.Contacts = append([]Contact(nil), b.Contact.Contacts...)
		c.Contact = &p
	case b.Location != nil:
		p := *b.Location
		if b.Location.Coordinates != nil {
			g := *b.Location.Coordinates
			p.Coordinates = &g
		}
		c.Location = &p
	case b.RSVP != nil:
		p := *b.RSVP
		c.RSVP = &p
	}
	return c
}
