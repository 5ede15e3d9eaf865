package tiger

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/fetcher"
)

// Download fetches a TABBLOCK ZIP archive and extracts the shapefile with
// its sidecars. Returns the path to the extracted .shp file. An archive
// already present on disk is reused rather than refetched; TIGER archives
// for a vintage never change.
func Download(ctx context.Context, d fetcher.Downloader, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "tiger"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create dest dir")
	}

	parts := strings.Split(url, "/")
	zipName := parts[len(parts)-1]
	zipPath := filepath.Join(destDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("archive already present, skipping download", zap.String("path", zipPath))
	} else {
		log.Info("downloading tabblock archive")
		if _, err := d.DownloadToFile(ctx, url, zipPath); err != nil {
			return "", eris.Wrap(err, "tiger: download tabblock archive")
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create extract dir")
	}
	paths, err := fetcher.ExtractZIP(zipPath, extractDir)
	if err != nil {
		return "", eris.Wrap(err, "tiger: extract tabblock archive")
	}

	for _, p := range paths {
		if strings.HasSuffix(strings.ToLower(p), ".shp") {
			return p, nil
		}
	}
	return "", eris.Errorf("tiger: no .shp file in %s", zipPath)
}
