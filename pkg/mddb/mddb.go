// Package mddb provides typed access to the MDDB projects API: entry
// enumeration and search, per-entry metadata, and structure/trajectory
// file downloads. Rendering downloaded files is out of scope; downloads
// end at a local file path.
package mddb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmb-irb/MDDB-meta/pkg/client"
	"github.com/mmb-irb/MDDB-meta/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// PageCeiling is the hard per-request page size the service enforces.
	// Requests with a larger limit are clamped silently, not rejected.
	PageCeiling = 100

	// DefaultPageLimit is the page size requested when enumerating the
	// whole collection.
	DefaultPageLimit = 100
)

// Project is one database entry.
type Project struct {
	// Accession is the unique textual identifier of the entry.
	Accession string `json:"accession"`

	// Published reports whether the entry is publicly released.
	Published bool `json:"published"`

	Metadata Metadata `json:"metadata"`
}

// Metadata carries the descriptive fields of an entry. Keys follow the
// upstream convention of uppercase field names.
type Metadata struct {
	Name        string `json:"NAME"`
	Description string `json:"DESCRIPTION"`
	Authors     string `json:"AUTHORS"`

	// Frames is the trajectory frame count.
	Frames int64 `json:"FRAMES"`

	// Atoms is the system atom count.
	Atoms int64 `json:"ATOMS"`
}

// File describes one downloadable artifact of an entry.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ListOptions filters a projects enumeration.
type ListOptions struct {
	// Search is a free-text filter; empty enumerates everything.
	Search string

	// Limit is the requested page size. Zero means DefaultPageLimit.
	// Values above PageCeiling are legal; the service clamps them and the
	// fetcher detects the clamp from the first page.
	Limit int
}

// StructureRequest selects what DownloadStructure retrieves.
type StructureRequest struct {
	// Selection restricts the structure to an atom selection
	// (e.g. "backbone and chain A"). Empty means the whole system.
	Selection string
}

// TrajectoryRequest selects what DownloadTrajectory retrieves.
type TrajectoryRequest struct {
	// Frames subsamples the trajectory, in start:end:step notation
	// (e.g. "0:1000:10"). Empty means every frame.
	Frames string

	// Format is the trajectory file format (e.g. "xtc", "mdcrd").
	Format string

	// Selection restricts the trajectory to an atom selection.
	Selection string
}

// Client is the typed MDDB API client.
type Client struct {
	api        *client.Client
	projects   *pagination.Fetcher[Project, Project]
	accessions *pagination.Fetcher[Project, string]
	logger     zerolog.Logger
}

// New creates a typed client on top of an MDDB HTTP client.
func New(api *client.Client) *Client {
	cfg := pagination.DefaultConfig()
	return &Client{
		api: api,
		projects: pagination.New(api, "projects",
			func(p Project) Project { return p }, cfg),
		accessions: pagination.New(api, "projects",
			func(p Project) string { return p.Accession }, cfg),
		logger: log.With().Str("component", "mddb").Logger(),
	}
}

// ListProjects enumerates every project matching the options, in server
// order across all pages.
func (c *Client) ListProjects(ctx context.Context, opts ListOptions) ([]Project, error) {
	return c.projects.FetchAll(ctx, listQuery(opts), pageLimit(opts))
}

// SearchAccessions enumerates the accession of every project matching the
// free-text filter. This is the common case for scanning the database.
func (c *Client) SearchAccessions(ctx context.Context, search string) ([]string, error) {
	return c.accessions.FetchAll(ctx, listQuery(ListOptions{Search: search}), DefaultPageLimit)
}

// GetProject retrieves the metadata of a single entry.
func (c *Client) GetProject(ctx context.Context, accession string) (*Project, error) {
	if accession == "" {
		return nil, fmt.Errorf("accession is required")
	}

	q := client.NewQuery("projects/" + accession)
	body, err := c.api.GetJSON(ctx, q)
	if err != nil {
		return nil, err
	}

	var project Project
	if err := json.Unmarshal(body, &project); err != nil {
		return nil, &client.TransportError{
			URL: q.URL(c.api.BaseURL()),
			Err: fmt.Errorf("malformed response body: %w", err),
		}
	}
	if project.Accession == "" {
		return nil, &client.ProtocolError{
			URL:   q.URL(c.api.BaseURL()),
			Field: "accession",
			Err:   fmt.Errorf("field missing"),
		}
	}

	return &project, nil
}

// ListFiles lists the downloadable artifacts of an entry.
func (c *Client) ListFiles(ctx context.Context, accession string) ([]File, error) {
	if accession == "" {
		return nil, fmt.Errorf("accession is required")
	}

	q := client.NewQuery("projects/" + accession + "/files")
	body, err := c.api.GetJSON(ctx, q)
	if err != nil {
		return nil, err
	}

	var files []File
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, &client.TransportError{
			URL: q.URL(c.api.BaseURL()),
			Err: fmt.Errorf("malformed response body: %w", err),
		}
	}

	return files, nil
}

// DownloadStructure downloads the entry's structure (PDB) to dest and
// returns the number of bytes written.
func (c *Client) DownloadStructure(ctx context.Context, accession, dest string, req StructureRequest) (int64, error) {
	if accession == "" {
		return 0, fmt.Errorf("accession is required")
	}

	q := client.NewQuery("projects/" + accession + "/structure")
	if req.Selection != "" {
		q = q.With("selection", req.Selection)
	}

	c.logger.Info().
		Str("accession", accession).
		Str("dest", dest).
		Msg("Downloading structure")

	return c.api.DownloadFile(ctx, q, dest)
}

// DownloadTrajectory downloads the entry's trajectory to dest, optionally
// subsampled by frames and restricted to an atom selection, and returns the
// number of bytes written.
func (c *Client) DownloadTrajectory(ctx context.Context, accession, dest string, req TrajectoryRequest) (int64, error) {
	if accession == "" {
		return 0, fmt.Errorf("accession is required")
	}

	q := client.NewQuery("projects/" + accession + "/trajectory")
	if req.Frames != "" {
		q = q.With("frames", req.Frames)
	}
	if req.Format != "" {
		q = q.With("format", req.Format)
	}
	if req.Selection != "" {
		q = q.With("selection", req.Selection)
	}

	c.logger.Info().
		Str("accession", accession).
		Str("frames", req.Frames).
		Str("format", req.Format).
		Str("dest", dest).
		Msg("Downloading trajectory")

	return c.api.DownloadFile(ctx, q, dest)
}

// DownloadProjectFile downloads a named artifact of an entry to dest.
func (c *Client) DownloadProjectFile(ctx context.Context, accession, name, dest string) (int64, error) {
	if accession == "" {
		return 0, fmt.Errorf("accession is required")
	}
	if name == "" {
		return 0, fmt.Errorf("file name is required")
	}

	q := client.NewQuery("projects/" + accession + "/files/" + name)
	return c.api.DownloadFile(ctx, q, dest)
}

// listQuery builds the collection base query for the options.
func listQuery(opts ListOptions) client.Query {
	q := client.NewQuery("projects")
	if opts.Search != "" {
		q = q.With("search", opts.Search)
	}
	return q
}

// pageLimit resolves the requested page size.
func pageLimit(opts ListOptions) int {
	if opts.Limit > 0 {
		return opts.Limit
	}
	return DefaultPageLimit
}
