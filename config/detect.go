package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DetectKind guesses the document kind of a source path when none is
// given: a file by its extension, a folder by the most common translatable
// extension among its files. Ties prefer markdown, then lean. An empty
// result means nothing translatable was found.
func DetectKind(path string, recursive bool) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	if !info.IsDir() {
		return kindForExt(filepath.Ext(path))
	}

	counts := make(map[string]int)
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != path && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if k := kindForExt(filepath.Ext(p)); k != "" {
			counts[k]++
		}
		return nil
	})

	best := ""
	for _, k := range []string{KindMarkdown, KindLean, KindText} {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best
}

func kindForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".md", ".markdown", ".mdx":
		return KindMarkdown
	case ".lean":
		return KindLean
	case ".txt", ".text":
		return KindText
	}
	return ""
}

// DetectLanguage returns the language code encoded in the last element of a
// target path ("docs/zh-CN", "out/ru", "guide.de.md"), or "".
func DetectLanguage(targetPath string) string {
	base := filepath.Base(filepath.Clean(targetPath))
	if isLangCode(base) {
		return base
	}
	// guide.de.md -> de
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.LastIndexByte(name, '.'); i >= 0 && isLangCode(name[i+1:]) {
		return name[i+1:]
	}
	return ""
}

// isLangCode checks if a string looks like a language code (en, ru, pt_BR,
// zh-CN, etc).
func isLangCode(s string) bool {
	lower := func(b byte) bool { return b >= 'a' && b <= 'z' }
	upper := func(b byte) bool { return b >= 'A' && b <= 'Z' }
	if len(s) == 2 {
		return lower(s[0]) && lower(s[1])
	}
	if len(s) == 5 && (s[2] == '_' || s[2] == '-') {
		return lower(s[0]) && lower(s[1]) && upper(s[3]) && upper(s[4])
	}
	return false
}
