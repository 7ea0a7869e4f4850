package render

import (
	"strings"
	"testing"

	"github.com/raon-c/re-me-sub000/internal/canvas"
	"github.com/raon-c/re-me-sub000/internal/templates"
)

func TestRenderSubstitution(t *testing.T) {
	cases := []struct {
		name     string
		template string
		ctx      Context
		want     string
	}{
		{
			name:     "known fields replaced",
			template: "<h1>{{groomName}} & {{brideName}}</h1>",
			ctx:      Context{"groomName": "김철수", "brideName": "이영희"},
			want:     "<h1>김철수 & 이영희</h1>",
		},
		{
			name:     "missing field becomes empty, never a literal token",
			template: "<p>{{venueName}}</p>",
			ctx:      Context{},
			want:     "<p></p>",
		},
		{
			name:     "if with value keeps body",
			template: "A{{#if customMessage}}{{customMessage}}{{/if}}C",
			ctx:      Context{"customMessage": "hi"},
			want:     "AhiC",
		},
		{
			name:     "if with empty value drops body",
			template: "A{{#if customMessage}}{{customMessage}}{{/if}}C",
			ctx:      Context{"customMessage": ""},
			want:     "AC",
		},
		{
			name:     "if with absent field drops body",
			template: "A{{#if customMessage}}{{customMessage}}{{/if}}C",
			ctx:      Context{},
			want:     "AC",
		},
		{
			name:     "unless with absent field keeps body",
			template: "{{#unless parkingInfo}}No parking{{/unless}}",
			ctx:      Context{},
			want:     "No parking",
		},
		{
			name:     "unless with value drops body",
			template: "{{#unless parkingInfo}}No parking{{/unless}}",
			ctx:      Context{"parkingInfo": "Lot B"},
			want:     "",
		},
		{
			name:     "falsy literal treated as absent",
			template: "{{#if rsvpEnabled}}RSVP{{/if}}",
			ctx:      Context{"rsvpEnabled": "false"},
			want:     "",
		},
		{
			name:     "unclosed directive stays literal",
			template: "A{{#if customMessage}}B",
			ctx:      Context{"customMessage": "hi"},
			want:     "A{{#if customMessage}}B",
		},
		{
			name:     "template without tokens is unchanged",
			template: "<div class=\"plain\">hello</div>",
			ctx:      Context{"groomName": "김철수"},
			want:     "<div class=\"plain\">hello</div>",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.template, tc.ctx); got != tc.want {
				t.Fatalf("Render() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	tpl, _ := templates.ByCategory(templates.CategoryClassic)
	ctx := Context{
		"groomName":   "김철수",
		"brideName":   "이영희",
		"weddingDate": "2026-10-24",
		"venueName":   "더채플 웨딩홀",
	}
	first := Render(tpl.HTML, ctx)
	second := Render(tpl.HTML, ctx)
	if first != second {
		t.Fatal("rendering twice with the same context must be byte-identical")
	}
}

func TestRenderLeavesNoPlaceholderTokens(t *testing.T) {
	// 区块指令不可嵌套，目录里的每个模板都必须在空上下文和
	// 全量上下文下都渲染干净。
	full := Context{
		"subtitle": "소중한 분들을 초대합니다", "groomName": "김철수", "brideName": "이영희",
		"weddingDate": "2026-10-24", "weddingTime": "오후 2시",
		"customMessage": "저희 두 사람이 하나가 됩니다.",
		"mainImageUrl":  "https://example.com/main.jpg", "mainImageAlt": "본식 사진",
		"mainImageCaption": "2025년 가을, 제주에서",
		"venueName":        "더채플 웨딩홀", "venueAddress": "서울시 강남구 테헤란로 123",
		"venueDetail": "4층 그랜드홀", "parkingInfo": "지하 주차장 2시간 무료", "transportInfo": "2호선 역삼역 3번 출구",
		"groomContact": "010-1234-5678", "brideContact": "010-8765-4321",
		"rsvpTitle": "참석 의사 전달", "rsvpDescription": "참석 여부를 알려주세요", "rsvpDueDate": "2026-10-10",
	}
	for _, ctx := range []Context{{"groomName": "김철수"}, full} {
		for _, tpl := range templates.BuiltIn() {
			out := Render(tpl.HTML, ctx)
			if strings.Contains(out, "{{") || strings.Contains(out, "}}") {
				t.Fatalf("template %s: unresolved tokens in output:\n%s", tpl.ID, out)
			}
		}
	}
}

func TestFromStateDerivesContext(t *testing.T) {
	state := canvas.State{
		Info: canvas.WeddingInfo{
			GroomName:    "김철수",
			BrideName:    "이영희",
			WeddingDate:  "2026-10-24",
			VenueName:    "더채플 웨딩홀",
			VenueAddress: "서울시 강남구 테헤란로 123",
			RSVPEnabled:  true,
			RSVPTitle:    "참석 의사 전달",
		},
		Elements: []canvas.Element{
			{ID: "t1", Type: canvas.ElementText, Content: "초대합니다"},
		},
	}

	ctx := FromState(state)
	if ctx["groomName"] != "김철수" || ctx["venueName"] != "더채플 웨딩홀" {
		t.Fatalf("unexpected context: %v", ctx)
	}
	if ctx["customMessage"] != "초대합니다" {
		t.Fatalf("first text element should back customMessage, got %q", ctx["customMessage"])
	}
	if ctx["rsvpTitle"] != "참석 의사 전달" {
		t.Fatalf("rsvp fields missing: %v", ctx)
	}
	if _, ok := ctx["parkingInfo"]; ok {
		t.Fatal("empty fields must not appear in context")
	}
}

func TestFromStateSkipsRSVPWhenDisabled(t *testing.T) {
	state := canvas.State{Info: canvas.WeddingInfo{RSVPTitle: "참석 의사 전달"}}
	ctx := FromState(state)
	if _, ok := ctx["rsvpTitle"]; ok {
		t.Fatal("disabled rsvp must not contribute context fields")
	}
}
