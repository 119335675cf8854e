package query

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// QueryExt is the extension of the query files picked up by CheckDir.
const QueryExt = ".sql"

// LoadQuery returns the query denoted by arg. An arg starting with @ names a
// file to read; so does an arg naming an existing regular file. Anything
// else is the query itself.
func LoadQuery(arg string) (string, error) {
	if strings.HasPrefix(arg, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	fi, err := os.Stat(arg)
	if err == nil && fi.Mode().IsRegular() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return arg, nil
}

// Report is the outcome of CheckDir.
type Report struct {
	// Results maps the file stem of every checked query to its result.
	Results map[string]Result

	// Files maps the file stem to the path it was read from.
	Files map[string]string

	// Skipped lists the files ignored because an earlier file had the
	// same stem.
	Skipped []string

	// Failed counts the results that are not Decoded.
	Failed int
}

type reportEntry struct {
	Status int         `json:"status,omitempty"`
	Body   interface{} `json:"body,omitempty"`
	Text   string      `json:"text,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// JSON renders the report as an indented object keyed by file stem.
func (r *Report) JSON() ([]byte, error) {
	out := make(map[string]reportEntry, len(r.Results))
	for stem, res := range r.Results {
		e := reportEntry{Status: res.StatusCode}
		switch res.Kind {
		case Decoded:
			e.Body = res.Body
		case Undecodable:
			e.Text = res.Text
		case TransportFailure:
			e.Error = res.Cause.Error()
		}
		out[stem] = e
	}
	return json.MarshalIndent(out, "", "  ")
}

// CheckDir checks every QueryExt file directly under each of dirs, in
// lexical order. Failures of single queries are logged and counted in the
// report; only unreadable directories or files and a done ctx abort the
// whole run.
func (c *Client) CheckDir(ctx context.Context, dirs []string) (*Report, error) {
	r := &Report{Results: make(map[string]Result), Files: make(map[string]string)}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return r, err
		}

		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != QueryExt {
				continue
			}
			if err := ctx.Err(); err != nil {
				return r, err
			}

			path := filepath.Join(dir, e.Name())
			stem := strings.TrimSuffix(e.Name(), QueryExt)
			log := c.log.WithFields(logrus.Fields{"file": path})

			if prev, ok := r.Files[stem]; ok {
				log.Errorf("%s already checked from %s. Skipping...", stem, prev)
				r.Skipped = append(r.Skipped, path)
				continue
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return r, err
			}

			res := c.Check(ctx, string(data))
			switch res.Kind {
			case Decoded:
				log.Infof("check for %s returned %d", stem, res.StatusCode)
			case Undecodable:
				log.Errorf("check for %s returned a non JSON body (%d)", stem, res.StatusCode)
				r.Failed++
			default:
				log.WithError(res.Cause).Errorf("check for %s failed", stem)
				r.Failed++
			}
			r.Results[stem] = res
			r.Files[stem] = path
		}
	}
	return r, nil
}
