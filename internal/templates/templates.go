// Package templates 内置邀请函模板目录。模板的 HTML 结构交给
// render 包渲染；Styles 只用于给新文档的区块播种样式，渲染器
// 不解释它。
package templates

// Category 是模板风格分类。
type Category string

const (
	CategoryClassic  Category = "classic"
	CategoryModern   Category = "modern"
	CategoryRomantic Category = "romantic"
	CategoryMinimal  Category = "minimal"
)

// Template 是一个可选模板：占位符 HTML + 播种用样式属性。
type Template struct {
	ID       string
	Name     string
	Category Category
	HTML     string
	Styles   map[string]string
}

// BuiltIn 返回内置模板目录（固定顺序）。
func BuiltIn() []Template {
	return []Template{classic, modern, romantic, minimal}
}

// ByID 按 id 查找内置模板。
func ByID(id string) (Template, bool) {
	for _, t := range BuiltIn() {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// ByCategory 返回指定分类下的第一个内置模板。
func ByCategory(c Category) (Template, bool) {
	for _, t := range BuiltIn() {
		if t.Category == c {
			return t, true
		}
	}
	return Template{}, false
}

var classic = Template{
	ID:       "classic-01",
	Name:     "클래식",
	Category: CategoryClassic,
	Styles: map[string]string{
		"accent_color": "#8a6d3b",
		"font_family":  "Noto Serif KR",
		"align":        "center",
	},
	HTML: `<section class="invitation classic">
  <header class="inv-header">
    <p class="inv-subtitle">{{subtitle}}</p>
    <h1>{{groomName}} <span class="amp">&amp;</span> {{brideName}}</h1>
    <p class="inv-date">{{weddingDate}} {{weddingTime}}</p>
  </header>
  {{#if customMessage}}
  <div class="inv-greeting">
    <p>{{customMessage}}</p>
  </div>
  {{/if}}
  {{#if mainImageUrl}}
  <figure class="inv-photo">
    <img src="{{mainImageUrl}}" alt="{{mainImageAlt}}" />
  </figure>
  {{/if}}
  {{#if mainImageCaption}}<p class="inv-photo-caption">{{mainImageCaption}}</p>{{/if}}
  <div class="inv-venue">
    <h2>{{venueName}}</h2>
    <p>{{venueAddress}}</p>
    {{#if venueDetail}}<p class="detail">{{venueDetail}}</p>{{/if}}
    {{#if parkingInfo}}<p class="parking">{{parkingInfo}}</p>{{/if}}
    {{#unless parkingInfo}}<p class="parking">주차 공간이 따로 준비되어 있지 않습니다.</p>{{/unless}}
  </div>
  <div class="inv-contact">
    {{#if groomContact}}<p>신랑측 {{groomContact}}</p>{{/if}}
    {{#if brideContact}}<p>신부측 {{brideContact}}</p>{{/if}}
  </div>
  {{#if rsvpTitle}}
  <div class="inv-rsvp">
    <h3>{{rsvpTitle}}</h3>
    <p>{{rsvpDescription}}</p>
  </div>
  {{/if}}
  {{#if rsvpDueDate}}<p class="inv-rsvp-due">{{rsvpDueDate}}</p>{{/if}}
</section>`,
}

var modern = Template{
	ID:       "modern-01",
	Name:     "모던",
	Category: CategoryModern,
	Styles: map[string]string{
		"accent_color": "#1f2937",
		"font_family":  "Pretendard",
		"align":        "left",
	},
	HTML: `<section class="invitation modern">
  <h1 class="names">{{groomName}} — {{brideName}}</h1>
  <p class="when">{{weddingDate}} · {{weddingTime}}</p>
  {{#if mainImageUrl}}<img class="hero" src="{{mainImageUrl}}" alt="{{mainImageAlt}}" />{{/if}}
  {{#if customMessage}}<p class="message">{{customMessage}}</p>{{/if}}
  <dl class="where">
    <dt>{{venueName}}</dt>
    <dd>{{venueAddress}}</dd>
    {{#if transportInfo}}<dd class="transport">{{transportInfo}}</dd>{{/if}}
  </dl>
  {{#if rsvpTitle}}<a class="rsvp-link" href="#rsvp">{{rsvpTitle}}</a>{{/if}}
</section>`,
}

var romantic = Template{
	ID:       "romantic-01",
	Name:     "로맨틱",
	Category: CategoryRomantic,
	Styles: map[string]string{
		"accent_color": "#be185d",
		"font_family":  "Gowun Batang",
		"align":        "center",
	},
	HTML: `<section class="invitation romantic">
  <p class="subtitle">{{subtitle}}</p>
  {{#if mainImageUrl}}
  <div class="frame"><img src="{{mainImageUrl}}" alt="{{mainImageAlt}}" /></div>
  {{/if}}
  <h1>{{groomName}} ♥ {{brideName}}</h1>
  {{#if customMessage}}<p class="letter">{{customMessage}}</p>{{/if}}
  <p class="when">{{weddingDate}} {{weddingTime}}</p>
  <p class="where">{{venueName}} · {{venueAddress}}</p>
  {{#if groomContact}}<p class="tel">신랑 {{groomContact}}</p>{{/if}}
  {{#if brideContact}}<p class="tel">신부 {{brideContact}}</p>{{/if}}
  {{#if rsvpDescription}}<p class="rsvp">{{rsvpDescription}}</p>{{/if}}
</section>`,
}

// minimal 分类没有照片区：FromTemplate 据此省略 image 区块。
var minimal = Template{
	ID:       "minimal-01",
	Name:     "미니멀",
	Category: CategoryMinimal,
	Styles: map[string]string{
		"accent_color": "#111111",
		"font_family":  "Pretendard",
		"align":        "left",
	},
	HTML: `<section class="invitation minimal">
  <h1>{{groomName}} / {{brideName}}</h1>
  <p>{{weddingDate}} {{weddingTime}}</p>
  <p>{{venueName}}, {{venueAddress}}</p>
  {{#if customMessage}}<p>{{customMessage}}</p>{{/if}}
  {{#unless rsvpTitle}}<p class="note">참석 여부는 따로 알려주지 않으셔도 됩니다.</p>{{/unless}}
  {{#if rsvpTitle}}<p class="rsvp">{{rsvpTitle}} · {{rsvpDescription}}</p>{{/if}}
</section>`,
}
