package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// migrationTemplates renders the skeleton of a new pair. Tenant
// migrations run with search_path set to the tenant schema.
var migrationTemplates = template.Must(template.New("migration").Parse(`
{{- define "up" -}}
-- {{.Version}} {{.Name}} (up), created {{.Created}}
{{- with .Description}}
-- {{.}}
{{- end}}
{{- if .Tenant}}
-- Applied per tenant schema via search_path: keep table names unqualified.
{{- end}}

{{end}}
{{- define "down" -}}
-- {{.Version}} {{.Name}} (Rollback), created {{.Created}}

{{end}}`))

// digits matches golang-migrate's "create -seq -digits 6"
const digits = 6

// MigrationFile describes a freshly written migration pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Created     string
	Tenant      bool
	UpPath      string
	DownPath    string
}

// CreateMigration writes the next numbered up/down pair of set into dir,
// the set's source directory. Existing files are never overwritten.
func CreateMigration(dir string, set Set, name, description string) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	next, err := nextSequence(os.DirFS(dir))
	if err != nil {
		return nil, err
	}

	mf := &MigrationFile{
		Version:     fmt.Sprintf("%0*d", digits, next),
		Name:        slug,
		Description: description,
		Created:     time.Now().UTC().Format(time.RFC3339),
		Tenant:      set == SetTenant,
	}
	stem := filepath.Join(dir, mf.Version+"_"+slug)
	mf.UpPath, mf.DownPath = stem+".up.sql", stem+".down.sql"

	if err := render(mf.UpPath, "up", mf); err != nil {
		return nil, err
	}
	if err := render(mf.DownPath, "down", mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

func render(path, name string, mf *MigrationFile) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	if err := migrationTemplates.ExecuteTemplate(f, name, mf); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}

// nextSequence returns one past the highest version found in fsys
func nextSequence(fsys fs.FS) (int, error) {
	names, err := migrationNames(fsys)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, name := range names {
		version, _, _ := strings.Cut(name, "_")
		if n, err := strconv.Atoi(version); err == nil {
			highest = max(highest, n)
		}
	}
	return highest + 1, nil
}

// sanitizeName lowercases name, drops everything but letters, digits and
// separators, and joins the words with single underscores
func sanitizeName(name string) string {
	kept := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return ' '
		}
		return -1
	}, strings.ToLower(name))
	return strings.Join(strings.Fields(kept), "_")
}

// ListMigrations returns the embedded migrations of set, oldest first
func ListMigrations(set Set) ([]string, error) {
	files, err := set.Files()
	if err != nil {
		return nil, err
	}
	return migrationNames(files)
}

// migrationNames lists the stems of the *.up.sql files in fsys, sorted
func migrationNames(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if stem, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok && !entry.IsDir() {
			names = append(names, stem)
		}
	}
	slices.Sort(names)
	return names, nil
}
