package canvas

import (
	"github.com/raon-c/re-me-sub000/internal/invitation"
	"github.com/raon-c/re-me-sub000/internal/templates"
)

// 元素布局合成常量：24 列网格，文本 6 行、图片 12 行，元素间留 1 行。
// 与旧前端画布的网格配置保持一致。
const (
	gridColumns = 24
	textRows    = 6
	imageRows   = 12
	rowGap      = 1
)

// ToState 把区块文档压平成旧画布状态。转换是有损的：
//
//   - header/location/rsvp 区块压进 wedding info 的标量字段；
//   - contact 区块最多保留 relation 为 "groom"/"bride" 的各第一条电话，
//     其余联系人直接丢弃（旧格式的既定限制，不做兜底）；
//   - 场地坐标在旧格式里没有落脚点，丢弃；
//   - content/image 区块降级为带合成布局的自由元素，布局由排序位置
//     决定，与任何历史布局无关；
//   - 不可见区块不参与转换（旧格式表达不了可见性）。
//
// 调用前文档应已 Normalize，但即便没有，输出也只依赖排序结果。
func ToState(doc *invitation.Document) State {
	state := State{Elements: []Element{}}
	y := 0

	for _, b := range doc.VisibleBlocks() {
		switch {
		case b.Header != nil:
			state.Info.GroomName = b.Header.GroomName
			state.Info.BrideName = b.Header.BrideName
			state.Info.Subtitle = b.Header.Subtitle
			state.Info.WeddingDate = b.Header.Date
			state.Info.WeddingTime = b.Header.Time
		case b.Location != nil:
			state.Info.VenueName = b.Location.VenueName
			state.Info.VenueAddress = b.Location.Address
			state.Info.VenueDetail = b.Location.DetailAddress
			state.Info.ParkingInfo = b.Location.ParkingInfo
			state.Info.TransportInfo = b.Location.TransportInfo
		case b.Contact != nil:
			for _, c := range b.Contact.Contacts {
				switch c.Relation {
				case "groom":
					if state.Info.GroomContact == "" {
						state.Info.GroomContact = c.Phone
					}
				case "bride":
					if state.Info.BrideContact == "" {
						state.Info.BrideContact = c.Phone
					}
				}
			}
		case b.RSVP != nil:
			state.Info.RSVPEnabled = b.RSVP.Enabled
			state.Info.RSVPTitle = b.RSVP.Title
			state.Info.RSVPDescription = b.RSVP.Description
			state.Info.RSVPDueDate = b.RSVP.DueDate
		case b.Content != nil:
			state.Elements = append(state.Elements, Element{
				ID:      b.ID,
				Type:    ElementText,
				Content: b.Content.Body,
				Style:   copyStyle(b.Style),
				Layout:  Layout{X: 0, Y: y, W: gridColumns, H: textRows},
			})
			y += textRows + rowGap
		case b.Image != nil:
			state.Elements = append(state.Elements, Element{
				ID:      b.ID,
				Type:    ElementImage,
				Content: b.Image.URL,
				Style:   copyStyle(b.Style),
				Layout:  Layout{X: 0, Y: y, W: gridColumns, H: imageRows},
			})
			y += imageRows + rowGap
		}
	}
	return state
}

// FromState 从画布状态重建区块文档。wedding info 的字段组按固定顺序
// 再生为 header、location、contact、rsvp 区块（字段组缺席则不生成），
// 之后 text/image 元素按原有相对顺序追加为 content/image 区块，
// divider 元素没有对应的区块类型，丢弃。
func FromState(state State) (*invitation.Document, error) {
	var blocks []invitation.Block
	order := 0
	next := func() int { order++; return order }

	info := state.Info
	if info.hasHeader() {
		b, err := invitation.NewBlock(invitation.KindHeader)
		if err != nil {
			return nil, err
		}
		b.Order = next()
		b.Header.GroomName = info.GroomName
		b.Header.BrideName = info.BrideName
		b.Header.Subtitle = info.Subtitle
		b.Header.Date = info.WeddingDate
		b.Header.Time = info.WeddingTime
		blocks = append(blocks, b)
	}
	if info.hasLocation() {
		b, err := invitation.NewBlock(invitation.KindLocation)
		if err != nil {
			return nil, err
		}
		b.Order = next()
		b.Location.VenueName = info.VenueName
		b.Location.Address = info.VenueAddress
		b.Location.DetailAddress = info.VenueDetail
		b.Location.ParkingInfo = info.ParkingInfo
		b.Location.TransportInfo = info.TransportInfo
		blocks = append(blocks, b)
	}
	if info.hasContact() {
		b, err := invitation.NewBlock(invitation.KindContact)
		if err != nil {
			return nil, err
		}
		b.Order = next()
		if info.GroomContact != "" {
			b.Contact.Contacts = append(b.Contact.Contacts, invitation.Contact{Relation: "groom", Phone: info.GroomContact})
		}
		if info.BrideContact != "" {
			b.Contact.Contacts = append(b.Contact.Contacts, invitation.Contact{Relation: "bride", Phone: info.BrideContact})
		}
		blocks = append(blocks, b)
	}
	if info.hasRSVP() {
		b, err := invitation.NewBlock(invitation.KindRSVP)
		if err != nil {
			return nil, err
		}
		b.Order = next()
		b.RSVP.Enabled = info.RSVPEnabled
		b.RSVP.Title = info.RSVPTitle
		b.RSVP.Description = info.RSVPDescription
		b.RSVP.DueDate = info.RSVPDueDate
		blocks = append(blocks, b)
	}

	for _, el := range state.Elements {
		var b invitation.Block
		var err error
		switch el.Type {
		case ElementText:
			b, err = invitation.NewBlock(invitation.KindContent)
			if err != nil {
				return nil, err
			}
			b.Content.Body = el.Content
			b.Content.RichText = true
		case ElementImage:
			b, err = invitation.NewBlock(invitation.KindImage)
			if err != nil {
				return nil, err
			}
			b.Image.URL = el.Content
		default:
			continue
		}
		if el.ID != "" {
			b.ID = el.ID
		}
		b.Order = next()
		b.Style = copyStyle(el.Style)
		blocks = append(blocks, b)
	}

	return invitation.FromBlocks(blocks)
}

// copyStyle 复制样式映射；核心不解释其中的键值。
func copyStyle(style map[string]any) map[string]any {
	if style == nil {
		return nil
	}
	out := make(map[string]any, len(style))
	for k, v := range style {
		out[k] = v
	}
	return out
}

// FromTemplate 依据模板播种一份规范文档：header、问候 content、
// image（minimal 分类省略）、location、contact、rsvp。字段优先取
// info 中的值，缺席时使用固定的可读占位文案，保证新文档在任何
// 编辑发生之前就能有意义地渲染。
func FromTemplate(tpl templates.Template, info *WeddingInfo) (*invitation.Document, error) {
	if info == nil {
		info = &WeddingInfo{}
	}
	style := seedStyle(tpl)
	var blocks []invitation.Block
	order := 0
	next := func() int { order++; return order }

	header, err := invitation.NewBlock(invitation.KindHeader)
	if err != nil {
		return nil, err
	}
	header.Order = next()
	header.Style = copyStyle(style)
	header.Header.GroomName = orDefault(info.GroomName, "신랑 이름")
	header.Header.BrideName = orDefault(info.BrideName, "신부 이름")
	header.Header.Subtitle = orDefault(info.Subtitle, "소중한 분들을 초대합니다")
	header.Header.Date = orDefault(info.WeddingDate, "2026-10-24")
	header.Header.Time = orDefault(info.WeddingTime, "13:00")
	blocks = append(blocks, header)

	greeting, err := invitation.NewBlock(invitation.KindContent)
	if err != nil {
		return nil, err
	}
	greeting.Order = next()
	greeting.Style = copyStyle(style)
	greeting.Content.Title = "모시는 글"
	greeting.Content.Body = orDefault(info.Greeting,
		"저희 두 사람이 사랑과 믿음으로 한 가정을 이루게 되었습니다. 귀한 걸음 하시어 축복해 주시면 감사하겠습니다.")
	blocks = append(blocks, greeting)

	if tpl.Category != templates.CategoryMinimal {
		photo, err := invitation.NewBlock(invitation.KindImage)
		if err != nil {
			return nil, err
		}
		photo.Order = next()
		photo.Style = copyStyle(style)
		photo.Image.URL = "/static/placeholder/main.jpg"
		photo.Image.Alt = "웨딩 사진"
		photo.Image.Ratio = invitation.RatioPortrait
		blocks = append(blocks, photo)
	}

	location, err := invitation.NewBlock(invitation.KindLocation)
	if err != nil {
		return nil, err
	}
	location.Order = next()
	location.Style = copyStyle(style)
	location.Location.VenueName = orDefault(info.VenueName, "예식장 이름")
	location.Location.Address = orDefault(info.VenueAddress, "예식장 주소를 입력해 주세요")
	location.Location.DetailAddress = info.VenueDetail
	location.Location.ParkingInfo = info.ParkingInfo
	location.Location.TransportInfo = info.TransportInfo
	blocks = append(blocks, location)

	contact, err := invitation.NewBlock(invitation.KindContact)
	if err != nil {
		return nil, err
	}
	contact.Order = next()
	contact.Style = copyStyle(style)
	contact.Contact.Title = "연락처"
	contact.Contact.Contacts = []invitation.Contact{
		{Name: orDefault(info.GroomName, "신랑"), Relation: "groom", Phone: orDefault(info.GroomContact, "010-0000-0000")},
		{Name: orDefault(info.BrideName, "신부"), Relation: "bride", Phone: orDefault(info.BrideContact, "010-0000-0000")},
	}
	blocks = append(blocks, contact)

	rsvp, err := invitation.NewBlock(invitation.KindRSVP)
	if err != nil {
		return nil, err
	}
	rsvp.Order = next()
	rsvp.Style = copyStyle(style)
	rsvp.RSVP.Title = orDefault(info.RSVPTitle, "참석 의사 전달")
	rsvp.RSVP.Description = orDefault(info.RSVPDescription, "축하의 마음으로 참석 여부를 알려주세요.")
	rsvp.RSVP.DueDate = info.RSVPDueDate
	blocks = append(blocks, rsvp)

	return invitation.FromBlocks(blocks)
}

func seedStyle(tpl templates.Template) map[string]any {
	if len(tpl.Styles) == 0 {
		return nil
	}
	out := make(map[string]any, len(tpl.Styles))
	for k, v := range tpl.Styles {
		out[k] = v
	}
	return out
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
