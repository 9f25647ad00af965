// File: internal/imagegen/download.go
package imagegen

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mediaforge/internal/browser"
)

// newTabWait bounds how long we wait for the in-app download control to
// open a new tab before falling back to scanning the download directory.
const newTabWait = 3 * time.Second

// downloadScanWindow is how far back a file's mtime may lie for it to be
// treated as the product of the click we just made.
const downloadScanWindow = 10 * time.Second

// imageExtensions are the file types a native browser download may produce.
// Native downloads keep whatever extension the browser gave them.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

// itemLadder is the ordered set of extraction steps for a single result
// item. The steps are plain funcs so the ladder's control flow can be
// exercised without a live browser.
type itemLadder struct {
	click      func() bool
	awaitTab   func() (target.ID, bool, error)
	saveTab    func(target.ID) (Item, error)
	saveNative func() (Item, error)
	findSource func() (string, error)
	fetch      func(string) (Item, error)
}

// run walks the ladder. Once the download control has been clicked the
// item's fate is sealed by that click: a failed tab fetch or an empty
// download scan ends the item, it never crosses over into source scraping.
// The scrape rung is reserved for items that expose no control at all.
func (l itemLadder) run(log *zap.Logger) (Item, bool) {
	if l.click() {
		tid, opened, err := l.awaitTab()
		if err != nil {
			return Item{}, false
		}
		if opened {
			item, err := l.saveTab(tid)
			if err == nil {
				log.Info("Saved image from download tab.", zap.String("path", item.Path))
				return item, true
			}
			log.Warn("New tab extraction failed.", zap.Error(err))
		} else {
			// No tab: the click likely triggered a native download into the
			// browser's download directory.
			item, err := l.saveNative()
			if err == nil {
				log.Info("Saved image from native download.", zap.String("path", item.Path))
				return item, true
			}
			log.Warn("Native download scan found nothing.", zap.Error(err))
		}
		return Item{}, false
	}

	// No control: scrape the largest plausible asset URL straight off the
	// detail view and fetch it ourselves.
	src, err := l.findSource()
	if err != nil || src == "" {
		log.Warn("No image source found for item.", zap.Error(err))
		return Item{}, false
	}
	item, err := l.fetch(src)
	if err != nil {
		log.Warn("Failed to fetch image source.", zap.String("url", src), zap.Error(err))
		return Item{}, false
	}
	log.Info("Saved image from page source.", zap.String("path", item.Path))
	return item, true
}

// extractItem pulls one generated image out of the page and saves it as
// image_{idx}.{ext} in the request's output directory. Any failure is
// logged and the item skipped; the batch carries on.
func (g *Generator) extractItem(ctx context.Context, results Strategy, idx int, req Request, log *zap.Logger) (item Item, ok bool) {
	ilog := log.With(zap.Int("index", idx))
	defer func() {
		if r := recover(); r != nil {
			ilog.Error("Panic while extracting item; skipping.", zap.Any("panic", r))
			ok = false
		}
	}()

	if err := g.openItem(ctx, results.Selector, idx); err != nil {
		ilog.Warn("Failed to open item detail view.", zap.Error(err))
		return Item{}, false
	}

	// Register the new-tab watcher before clicking so a fast tab is not
	// missed.
	tabCh := chromedp.WaitNewTarget(ctx, func(info *target.Info) bool {
		return info.Type == "page" && info.URL != ""
	})

	ladder := itemLadder{
		click: func() bool { return g.clickDownloadControl(ctx, ilog) },
		awaitTab: func() (target.ID, bool, error) {
			select {
			case tid := <-tabCh:
				return tid, true, nil
			case <-time.After(newTabWait):
				return "", false, nil
			case <-ctx.Done():
				return "", false, ctx.Err()
			}
		},
		saveTab: func(tid target.ID) (Item, error) {
			return g.saveFromNewTab(ctx, tid, idx, req.OutputDir, ilog)
		},
		saveNative: func() (Item, error) { return g.moveLatestDownload(idx, req.OutputDir) },
		findSource: func() (string, error) { return g.findItemSource(ctx) },
		fetch: func(src string) (Item, error) {
			return g.saveFromURL(ctx, src, idx, req.OutputDir)
		},
	}
	return ladder.run(ilog)
}

// openItem scrolls the idx-th (1-based) result into view and clicks it,
// opening the detail overlay. Elements are re-queried at click time so a
// re-rendered grid cannot hand us a stale reference.
func (g *Generator) openItem(ctx context.Context, selector string, idx int) error {
	script := `(() => {
		const els = document.querySelectorAll(%q);
		if (els.length < %d) return false;
		const el = els[%d - 1];
		el.scrollIntoView({block: 'center'});
		return true;
	})()`
	var visible bool
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(fmt.Sprintf(script, selector, idx, idx), &visible),
		browser.Hesitate(400, 800),
	); err != nil {
		return err
	}
	if !visible {
		return fmt.Errorf("result %d no longer present in grid", idx)
	}

	click := `(() => {
		const els = document.querySelectorAll(%q);
		if (els.length < %d) return false;
		els[%d - 1].click();
		return true;
	})()`
	var ok bool
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(fmt.Sprintf(click, selector, idx, idx), &ok),
		browser.Hesitate(1000, 2000),
	); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("result %d vanished before click", idx)
	}
	return nil
}

// clickDownloadControl finds a visible download control in the detail view
// and clicks it. When the match is the bare svg icon the clickable parent
// receives the click.
func (g *Generator) clickDownloadControl(ctx context.Context, log *zap.Logger) bool {
	script := `(() => {
		const els = document.querySelectorAll(%q);
		for (const el of els) {
			const rect = el.getBoundingClientRect();
			if (rect.width === 0 || rect.height === 0) continue;
			const clickable = el.tagName.toLowerCase() === 'svg' ? el.parentElement : el;
			if (!clickable) continue;
			clickable.click();
			return true;
		}
		return false;
	})()`

	for _, s := range downloadStrategies {
		var clicked bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(script, s.Selector), &clicked)); err != nil {
			continue
		}
		if clicked {
			log.Debug("Clicked download control.", zap.String("strategy", s.Name))
			return true
		}
	}
	log.Debug("No visible download control in detail view.")
	return false
}

// saveFromNewTab attaches to the freshly opened tab, reads its URL, fetches
// the asset over HTTP and closes the tab again.
func (g *Generator) saveFromNewTab(ctx context.Context, tid target.ID, idx int, outputDir string, log *zap.Logger) (Item, error) {
	tabCtx, cancel := chromedp.NewContext(ctx, chromedp.WithTargetID(tid))
	defer func() {
		if err := chromedp.Cancel(tabCtx); err != nil {
			log.Debug("Failed to close download tab.", zap.Error(err))
		}
		cancel()
	}()

	var tabURL string
	if err := chromedp.Run(tabCtx, chromedp.Location(&tabURL)); err != nil {
		return Item{}, fmt.Errorf("failed to read download tab URL: %w", err)
	}
	if tabURL == "" || tabURL == "about:blank" {
		return Item{}, fmt.Errorf("download tab has no usable URL")
	}
	return g.saveFromURL(ctx, tabURL, idx, outputDir)
}

// saveFromURL fetches rawURL with the browser persona's user agent and
// writes it to image_{idx}.{ext} under outputDir.
func (g *Generator) saveFromURL(ctx context.Context, rawURL string, idx int, outputDir string) (Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Item{}, fmt.Errorf("bad asset URL %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", browser.DefaultPersona.UserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return Item{}, fmt.Errorf("asset fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Item{}, fmt.Errorf("asset fetch returned status %d", resp.StatusCode)
	}

	ext := inferExtension(rawURL, resp.Header.Get("Content-Type"))
	filename := fmt.Sprintf("image_%d.%s", idx, ext)
	path := filepath.Join(outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return Item{}, fmt.Errorf("failed to create %q: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return Item{}, fmt.Errorf("failed to write %q: %w", path, err)
	}
	return Item{Index: idx, Filename: filename, Path: path, URL: rawURL}, nil
}

// moveLatestDownload scans the browser's download directory for an image
// file modified within the scan window and moves it into outputDir under
// the canonical name. Gives the download a moment to land first.
func (g *Generator) moveLatestDownload(idx int, outputDir string) (Item, error) {
	dir := g.browserCfg.DownloadDir
	if dir == "" {
		return Item{}, fmt.Errorf("no download directory configured")
	}

	deadline := time.Now().Add(downloadScanWindow)
	for {
		path, err := latestImageIn(dir, downloadScanWindow)
		if err == nil {
			ext := strings.TrimPrefix(filepath.Ext(path), ".")
			filename := fmt.Sprintf("image_%d.%s", idx, ext)
			dest := filepath.Join(outputDir, filename)
			if err := os.Rename(path, dest); err != nil {
				// Cross-device moves fall back to copy + remove.
				if err := copyFile(path, dest); err != nil {
					return Item{}, fmt.Errorf("failed to move download %q: %w", path, err)
				}
				os.Remove(path)
			}
			return Item{Index: idx, Filename: filename, Path: dest}, nil
		}
		if time.Now().After(deadline) {
			return Item{}, err
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// latestImageIn returns the most recently modified image file in dir whose
// mtime falls within the window, skipping in-progress .crdownload files.
func latestImageIn(dir string, window time.Duration) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read download dir %q: %w", dir, err)
	}

	cutoff := time.Now().Add(-window)
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".crdownload") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, name)
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no recent image file in %q", dir)
	}
	return newest, nil
}

// findItemSource scrapes the detail view for the first substantial image
// whose URL points at a known asset host.
func (g *Generator) findItemSource(ctx context.Context) (string, error) {
	hosts := make([]string, len(g.cfg.AssetHosts))
	for i, h := range g.cfg.AssetHosts {
		hosts[i] = fmt.Sprintf("%q", h)
	}
	script := fmt.Sprintf(`(() => {
		const hosts = [%s];
		const imgs = document.querySelectorAll('img[src^="http"]');
		for (const img of imgs) {
			if (img.naturalWidth <= %d) continue;
			if (hosts.some(h => img.src.includes(h))) return img.src;
		}
		return "";
	})()`, strings.Join(hosts, ", "), g.cfg.MinImageWidth)

	var src string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &src)); err != nil {
		return "", err
	}
	return src, nil
}

// inferredExtensions maps URL path suffixes onto the closed set of names
// inference may produce. Saved assets are only ever png, jpg or webp;
// anything else lands on the jpg default.
var inferredExtensions = map[string]string{
	".jpg": "jpg", ".jpeg": "jpg", ".png": "png", ".webp": "webp",
}

// inferExtension picks a file extension for a fetched asset: the URL path
// suffix wins, then the response content type, then jpg.
func inferExtension(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext, ok := inferredExtensions[strings.ToLower(filepath.Ext(u.Path))]; ok {
			return ext
		}
	}
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mt {
			case "image/jpeg":
				return "jpg"
			case "image/png":
				return "png"
			case "image/webp":
				return "webp"
			}
		}
	}
	return "jpg"
}

// copyFile copies src to dest, used when rename crosses filesystems.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
