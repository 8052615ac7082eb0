package preflight

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Aman-CERP/casesearch/internal/config"
	"github.com/Aman-CERP/casesearch/internal/output"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
	"github.com/Aman-CERP/casesearch/internal/store"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight checks.
type Checker struct {
	verbose bool
	lister  registry.Lister
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithRegistry enables the registry reachability check.
func WithRegistry(lister registry.Lister) Option {
	return func(c *Checker) {
		c.lister = lister
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against cfg.
func (c *Checker) RunAll(ctx context.Context, cfg *config.Config) []CheckResult {
	var results []CheckResult

	dirs := dataDirs(cfg)
	for _, dir := range dirs {
		results = append(results, c.CheckWritePermissions(dir))
	}
	if len(dirs) > 0 {
		results = append(results, c.CheckDiskSpace(dirs[0]))
	}
	results = append(results, c.CheckFileDescriptors())
	results = append(results, c.CheckLedger(ctx, cfg.Ledger.Path))
	results = append(results, c.CheckIndex(cfg.Index.Path))
	if c.lister != nil {
		results = append(results, c.CheckRegistry(ctx))
	}
	return results
}

// dataDirs returns the distinct directories holding on-disk state.
func dataDirs(cfg *config.Config) []string {
	var dirs []string
	seen := make(map[string]bool)
	add := func(dir string) {
		if dir != "" && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	if cfg.Index.Path != "" {
		add(filepath.Dir(cfg.Index.Path))
	}
	if cfg.Ledger.Path != "" && cfg.Ledger.Path != ":memory:" {
		add(filepath.Dir(cfg.Ledger.Path))
	}
	return dirs
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "ready_with_warnings" or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// Print writes results and the summary status to out.
func (c *Checker) Print(out *output.Writer, results []CheckResult) {
	out.Header("casesearch system check")
	for _, r := range results {
		switch {
		case r.Status == StatusPass:
			out.Successf("%s: %s", r.Name, r.Message)
		case r.IsCritical():
			out.Errorf("%s: %s", r.Name, r.Message)
		default:
			out.Warningf("%s: %s", r.Name, r.Message)
		}
		if r.Details != "" && (c.verbose || r.Status != StatusPass) {
			out.Status("", r.Details)
		}
	}
	out.Newline()
	out.KeyValue("status", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckWritePermissions checks that files can be created in dir.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
		Details:  dir,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}
	f, err := os.CreateTemp(dir, ".casesearch-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckLedger opens the ledger and reports pending and failing marks.
func (c *Checker) CheckLedger(ctx context.Context, path string) CheckResult {
	result := CheckResult{
		Name:     "ledger",
		Required: true,
	}

	ledger, err := store.NewSQLiteLedger(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = "Move the ledger file aside and run 'casesearch reindex' to rebuild the marks"
		return result
	}
	defer func() { _ = ledger.Close() }()

	stats, err := ledger.Stats(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	result.Message = fmt.Sprintf("%d pending, %d failing", stats.Pending, stats.Failing)
	if stats.Failing > 0 {
		result.Status = StatusWarn
		result.Details = "Failing marks are retried by every drain; check the registry and the log"
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckIndex reports whether the index exists and its size on disk. The
// index is not opened, so the check is safe while a server holds it.
func (c *Checker) CheckIndex(path string) CheckResult {
	result := CheckResult{
		Name:     "index",
		Required: false,
	}
	if path == "" {
		result.Status = StatusPass
		result.Message = "in memory"
		return result
	}

	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	switch {
	case os.IsNotExist(err):
		result.Status = StatusWarn
		result.Message = "not created yet"
		result.Details = "Run 'casesearch reindex --drain' to build it"
	case err != nil:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read %s: %v", path, err)
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s on disk", humanize.IBytes(uint64(size)))
	}
	return result
}

// CheckRegistry lists one case id to verify the registry answers.
func (c *Checker) CheckRegistry(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "registry",
		Required: false,
	}
	if _, err := c.lister.ListIDs(ctx, projection.KindCase, 0, 1); err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = "Marks stay pending until the registry is reachable"
		return result
	}
	result.Status = StatusPass
	result.Message = "reachable"
	return result
}
