// Package aim composes form discovery, heuristic field mapping, submission
// and response parsing into the single operation callers use: parameters in,
// parsed result out.
//
// Control flow is strictly linear; no step calls back into an earlier one and
// nothing persists across invocations, so a Client is safe to use from
// concurrent call sites (each Run builds its own cookie session).
package aim

import (
	"context"
	"net/http"
	"time"

	"aimclient/internal/form"
	"aimclient/internal/mapper"
	"aimclient/internal/parser/modeltext"
	"aimclient/internal/webclient"
)

// DefaultPageURL is the model II interactive page.
const DefaultPageURL = "https://www.aim.env.uea.ac.uk/aim/model2/model2a.php"

// DefaultTimeout applies per network call when the config leaves it zero.
const DefaultTimeout = 30 * time.Second

// Params is re-exported so callers need not import the mapper directly.
type Params = mapper.Params

// Amount is re-exported alongside Params.
type Amount = mapper.Amount

// Client runs model submissions against one configured endpoint.
type Client struct {
	cfg  webclient.Config
	base *http.Client
}

// NewClient builds a Client for cfg. An empty cfg.PageURL selects the
// default model II endpoint. base supplies transport settings and may be
// nil; cookie jars are always per-Run, never shared.
func NewClient(cfg webclient.Config, base *http.Client) *Client {
	if cfg.PageURL == "" {
		cfg.PageURL = DefaultPageURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg, base: base}
}

// Run discovers the remote form, maps p onto it, submits, and parses the
// response.
//
// Errors are transport-level only (including non-2xx statuses, as
// *webclient.StatusError); a page without a form falls back to a generic
// submission against the page URL, and unrecognizable response text yields a
// raw-excerpt result rather than an error.
func (c *Client) Run(ctx context.Context, p Params) (modeltext.Result, error) {
	sess := webclient.NewSession(c.base, c.cfg)

	skel, err := form.Discover(ctx, sess)
	if err != nil {
		return modeltext.Result{}, err
	}

	actionURL := c.cfg.PageURL
	var payload mapper.Payload
	if skel == nil {
		payload = mapper.Generic(p)
	} else {
		actionURL = skel.ActionURL
		payload = mapper.Map(skel, p)
	}

	body, err := sess.Submit(ctx, actionURL, payload)
	if err != nil {
		return modeltext.Result{}, err
	}

	return modeltext.Parse(body), nil
}
