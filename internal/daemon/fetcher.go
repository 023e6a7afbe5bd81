package daemon

import (
	"context"
	"fmt"
	"os"

	"callscribe/internal/fileutil"
	"callscribe/internal/services/telegram"
)

// sourceFetcher resolves a task's origin reference. A locator naming an
// existing local file is copied; anything else is treated as a Telegram
// file ID.
type sourceFetcher struct {
	bot *telegram.Client
}

func (f *sourceFetcher) Fetch(ctx context.Context, sourceLocator, destPath string) error {
	if info, err := os.Stat(sourceLocator); err == nil && !info.IsDir() {
		return fileutil.CopyFile(sourceLocator, destPath)
	}
	if f.bot == nil {
		return fmt.Errorf("fetch %s: not a local file and no bot token configured", sourceLocator)
	}
	return f.bot.DownloadFile(ctx, sourceLocator, destPath)
}
