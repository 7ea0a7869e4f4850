// Package preview 使用 go-rod 无头浏览器渲染发布页面，
// 产出分享用的预览截图与可下载的 PDF。
package preview

import (
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const renderTimeout = 30 * time.Second

// 移动端视口，请柬页面以手机阅读为主。
const (
	viewportWidth  = 390
	viewportHeight = 844
)

// ScreenshotFromHTML 渲染 HTML 并返回移动端视口下的 JPEG 截图。
func ScreenshotFromHTML(htmlContent string) ([]byte, error) {
	return render(htmlContent, func(page *rod.Page) ([]byte, error) {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             viewportWidth,
			Height:            viewportHeight,
			DeviceScaleFactor: 2,
			Mobile:            true,
		}); err != nil {
			return nil, fmt.Errorf("set viewport: %w", err)
		}
		quality := 85
		return page.Screenshot(false, &proto.PageCaptureScreenshot{
			Format:  proto.PageCaptureScreenshotFormatJpeg,
			Quality: &quality,
		})
	})
}

// PDFFromHTML 渲染 HTML 并返回 PDF 字节。
func PDFFromHTML(htmlContent string) ([]byte, error) {
	return render(htmlContent, func(page *rod.Page) ([]byte, error) {
		reader, err := page.PDF(&proto.PagePrintToPDF{
			PrintBackground:   true,
			PreferCSSPageSize: true,
		})
		if err != nil {
			return nil, fmt.Errorf("export pdf: %w", err)
		}
		defer func() {
			_ = reader.Close()
		}()
		return io.ReadAll(reader)
	})
}

// render 启动无头浏览器、载入文档，再交由 capture 提取产物。
func render(htmlContent string, capture func(*rod.Page) ([]byte, error)) ([]byte, error) {
	launch := launcher.New().
		Headless(true).
		NoSandbox(true)

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Timeout(renderTimeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	page = page.Timeout(renderTimeout)
	if err := page.SetDocumentContent(htmlContent); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	data, err := capture(page)
	if err != nil {
		return nil, err
	}
	return data, nil
}
