// Package canvas 定义旧版自由画布持久化格式，以及它与区块文档之间的
// 双向转换。画布格式归持久化层所有（invitations.content JSONB），
// 编辑器内存中只使用区块文档，画布状态仅作为序列化边界出现。
package canvas

// ElementType 是画布元素类型。旧格式只认识这三种。
type ElementType string

const (
	ElementText    ElementType = "text"
	ElementImage   ElementType = "image"
	ElementDivider ElementType = "divider"
)

// Layout 描述元素在 24 列网格中的位置、宽高。
// 与前端 react-grid-layout 的配置保持一致。
type Layout struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Element 是画布中的单个自由元素。
type Element struct {
	ID      string         `json:"id"`
	Type    ElementType    `json:"type"`
	Content string         `json:"content"` // text: 正文(HTML)，image: URL/objectKey，divider: 空
	Style   map[string]any `json:"style,omitempty"`
	Layout  Layout         `json:"layout"`
}

// WeddingInfo 是画布格式里唯一的结构化部分：一条扁平的婚礼信息记录。
// 它没有区块概念，contact/location/rsvp 的内容被压平成标量字段，
// 压不进去的信息在转换时丢失。
type WeddingInfo struct {
	GroomName       string `json:"groom_name,omitempty"`
	BrideName       string `json:"bride_name,omitempty"`
	Subtitle        string `json:"subtitle,omitempty"`
	WeddingDate     string `json:"wedding_date,omitempty"`
	WeddingTime     string `json:"wedding_time,omitempty"`
	Greeting        string `json:"greeting,omitempty"`
	VenueName       string `json:"venue_name,omitempty"`
	VenueAddress    string `json:"venue_address,omitempty"`
	VenueDetail     string `json:"venue_detail,omitempty"`
	ParkingInfo     string `json:"parking_info,omitempty"`
	TransportInfo   string `json:"transport_info,omitempty"`
	GroomContact    string `json:"groom_contact,omitempty"`
	BrideContact    string `json:"bride_contact,omitempty"`
	RSVPEnabled     bool   `json:"rsvp_enabled,omitempty"`
	RSVPTitle       string `json:"rsvp_title,omitempty"`
	RSVPDescription string `json:"rsvp_description,omitempty"`
	RSVPDueDate     string `json:"rsvp_due_date,omitempty"`
}

// State 是完整的画布状态：自由元素列表 + 婚礼信息记录。
type State struct {
	Elements []Element   `json:"elements"`
	Info     WeddingInfo `json:"wedding_info"`
}

func (i WeddingInfo) hasHeader() bool {
	return i.GroomName != "" || i.BrideName != "" || i.WeddingDate != "" || i.WeddingTime != ""
}

func (i WeddingInfo) hasLocation() bool {
	return i.VenueName != "" || i.VenueAddress != ""
}

func (i WeddingInfo) hasContact() bool {
	return i.GroomContact != "" || i.BrideContact != ""
}

func (i WeddingInfo) hasRSVP() bool {
	return i.RSVPEnabled || i.RSVPTitle != "" || i.RSVPDescription != ""
}
