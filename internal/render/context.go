package render

import (
	"github.com/raon-c/re-me-sub000/internal/canvas"
	"github.com/raon-c/re-me-sub000/internal/invitation"
)

// FromDocument 从区块文档派生渲染上下文。只遍历可见区块；
// 同类区块出现多个时取排序后的第一个。空值不写入上下文，
// 这样 {{#if}}/{{#unless}} 才能按"字段缺失"正确分支。
func FromDocument(doc *invitation.Document) Context {
	ctx := Context{}
	for _, b := range doc.VisibleBlocks() {
		switch {
		case b.Header != nil:
			setIf(ctx, "groomName", b.Header.GroomName)
			setIf(ctx, "brideName", b.Header.BrideName)
			setIf(ctx, "subtitle", b.Header.Subtitle)
			setIf(ctx, "weddingDate", b.Header.Date)
			setIf(ctx, "weddingTime", b.Header.Time)
		case b.Content != nil:
			setIf(ctx, "greetingTitle", b.Content.Title)
			setIf(ctx, "customMessage", b.Content.Body)
		case b.Image != nil:
			setIf(ctx, "mainImageUrl", b.Image.URL)
			setIf(ctx, "mainImageAlt", b.Image.Alt)
			setIf(ctx, "mainImageCaption", b.Image.Caption)
		case b.Contact != nil:
			setIf(ctx, "contactTitle", b.Contact.Title)
			// 与 canvas.ToState 一致：每个 relation 只保留第一条。
			for _, c := range b.Contact.Contacts {
				switch c.Relation {
				case "groom":
					setIf(ctx, "groomContact", c.Phone)
				case "bride":
					setIf(ctx, "brideContact", c.Phone)
				}
			}
		case b.Location != nil:
			setIf(ctx, "venueName", b.Location.VenueName)
			setIf(ctx, "venueAddress", b.Location.Address)
			setIf(ctx, "venueDetail", b.Location.DetailAddress)
			setIf(ctx, "parkingInfo", b.Location.ParkingInfo)
			setIf(ctx, "transportInfo", b.Location.TransportInfo)
		case b.RSVP != nil:
			if b.RSVP.Enabled {
				setIf(ctx, "rsvpTitle", b.RSVP.Title)
				setIf(ctx, "rsvpDescription", b.RSVP.Description)
				setIf(ctx, "rsvpDueDate", b.RSVP.DueDate)
			}
		}
	}
	return ctx
}

// FromState 直接从旧画布状态的 wedding info 派生渲染上下文，
// 用于不想先重建区块文档的只读路径。
func FromState(state canvas.State) Context {
	info := state.Info
	ctx := Context{}
	setIf(ctx, "groomName", info.GroomName)
	setIf(ctx, "brideName", info.BrideName)
	setIf(ctx, "subtitle", info.Subtitle)
	setIf(ctx, "weddingDate", info.WeddingDate)
	setIf(ctx, "weddingTime", info.WeddingTime)
	setIf(ctx, "customMessage", info.Greeting)
	setIf(ctx, "venueName", info.VenueName)
	setIf(ctx, "venueAddress", info.VenueAddress)
	setIf(ctx, "venueDetail", info.VenueDetail)
	setIf(ctx, "parkingInfo", info.ParkingInfo)
	setIf(ctx, "transportInfo", info.TransportInfo)
	setIf(ctx, "groomContact", info.GroomContact)
	setIf(ctx, "brideContact", info.BrideContact)
	if info.RSVPEnabled {
		setIf(ctx, "rsvpTitle", info.RSVPTitle)
		setIf(ctx, "rsvpDescription", info.RSVPDescription)
		setIf(ctx, "rsvpDueDate", info.RSVPDueDate)
	}

	// 画布里的第一个文本元素在没有独立问候语时充当 customMessage。
	if _, ok := ctx["customMessage"]; !ok {
		for _, el := range state.Elements {
			if el.Type == canvas.ElementText && el.Content != "" {
				ctx["customMessage"] = el.Content
				break
			}
		}
	}
	return ctx
}

// setIf 先到先得：同名键已存在时不覆盖，空值不写入。
func setIf(ctx Context, key, value string) {
	if value == "" {
		return
	}
	if _, ok := ctx[key]; ok {
		return
	}
	ctx[key] = value
}
