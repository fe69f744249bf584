package experts

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/pkg/markdown"
)

// DefaultExpertName is the guaranteed fallback persona.
const DefaultExpertName = "Assistant"

const defaultAssistantPrompt = "You are a helpful AI assistant."

// Catalog maps expert names to persona instruction text. It is loaded once
// at startup and read-only afterwards.
type Catalog struct {
	prompts map[string]string
	names   []string
}

// LoadCatalog reads persona files from a directory: .txt files are taken
// verbatim, .md files are flattened to plain text. A file that fails to
// load is skipped with a warning. The Assistant fallback is always present.
func LoadCatalog(dir string, logger *logrus.Logger) (*Catalog, error) {
	prompts := make(map[string]string)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.WithField("dir", dir).Warn("Expert prompt directory not found")
	} else {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".txt" && ext != ".md" {
				return nil
			}

			data, err := os.ReadFile(path)
			if err != nil {
				logger.WithError(err).WithField("path", path).Warn("Failed to load persona file")
				return nil
			}

			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			text := strings.TrimSpace(string(data))
			if ext == ".md" {
				text = markdown.ToPlainText(text)
			}
			if text == "" {
				logger.WithField("path", path).Warn("Skipping empty persona file")
				return nil
			}

			prompts[name] = text
			logger.WithFields(logrus.Fields{
				"expert": name,
				"path":   path,
			}).Debug("Loaded persona")
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if _, ok := prompts[DefaultExpertName]; !ok {
		prompts[DefaultExpertName] = defaultAssistantPrompt
	}

	names := make([]string, 0, len(prompts))
	for name := range prompts {
		names = append(names, name)
	}
	sort.Strings(names)

	logger.WithField("experts", len(prompts)).Info("Expert catalog loaded")
	return &Catalog{prompts: prompts, names: names}, nil
}

// Get returns a persona's instruction text.
func (c *Catalog) Get(name string) (string, bool) {
	text, ok := c.prompts[name]
	return text, ok
}

// Has reports whether a persona exists.
func (c *Catalog) Has(name string) bool {
	_, ok := c.prompts[name]
	return ok
}

// Names returns all persona names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}
