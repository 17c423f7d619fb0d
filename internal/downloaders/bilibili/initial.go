package bilibili

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediafetch/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL = "https://api.bilibili.com"
	Referer        = "https://www.bilibili.com"
	// DASH stream format selector
	fnvalDash = 16
)

// Resolver turns a BV identifier into its parts with separate video and
// audio stream URLs, using the public player APIs only.
type Resolver struct {
	client     utils.HTTPDoer
	BaseURL    string
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

func New(client utils.HTTPDoer, retries int) *Resolver {
	return &Resolver{
		client:     client,
		BaseURL:    DefaultBaseURL,
		Workers:    4,
		Retries:    retries,
		RetryDelay: utils.DefaultRetryDelay,
	}
}

// Resolve returns one episode per part, in part order. A part whose streams
// cannot be resolved is returned with empty URLs; only a failure to list the
// parts is an error.
func (r *Resolver) Resolve(ctx context.Context, id string) ([]utils.Episode, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("content id is required")
	}
	var pages []page
	if err := r.fetch(ctx, "page list", r.endpoint("/x/player/pagelist", url.Values{"bvid": {id}}), &pages); err != nil {
		return nil, fmt.Errorf("error listing parts of %s: %w", id, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no parts found for %s", id)
	}
	log.Debug().Str("op", "bilibili/initial").Msgf("Found %d parts for %s", len(pages), id)

	episodes := make([]utils.Episode, len(pages))
	var g errgroup.Group
	g.SetLimit(max(r.Workers, 1))
	for i, p := range pages {
		episodes[i].Title = p.Part
		if episodes[i].Title == "" {
			episodes[i].Title = fmt.Sprintf("%s_p%d", id, i+1)
		}
		g.Go(func() error {
			video, audio, err := r.streams(ctx, id, p.CID)
			if err != nil {
				log.Error().Str("op", "bilibili/initial").Err(err).Msgf("Failed to fetch video/audio URL for %s", episodes[i].Title)
				return nil
			}
			episodes[i].VideoURL = video
			episodes[i].AudioURL = audio
			return nil
		})
	}
	g.Wait()
	return episodes, nil
}

func (r *Resolver) streams(ctx context.Context, id string, cid int64) (string, string, error) {
	query := url.Values{
		"bvid":  {id},
		"cid":   {fmt.Sprint(cid)},
		"fnval": {fmt.Sprint(fnvalDash)},
	}
	var info playInfo
	if err := r.fetch(ctx, "play info", r.endpoint("/x/player/playurl", query), &info); err != nil {
		return "", "", err
	}
	if len(info.Dash.Video) == 0 || len(info.Dash.Audio) == 0 {
		return "", "", fmt.Errorf("no DASH streams for cid %d", cid)
	}
	return info.Dash.Video[0].BaseURL, info.Dash.Audio[0].BaseURL, nil
}

func (r *Resolver) fetch(ctx context.Context, what, link string, out any) error {
	retrier := utils.NewRetrier(r.Retries, r.RetryDelay)
	retrier.OnRetry = func(attempt int, err error) {
		log.Warn().Str("op", "bilibili/initial").Err(err).Msgf("Fetching %s failed, retrying (%d/%d)", what, attempt, r.Retries)
	}
	_, err := retrier.Do(ctx, func(int) error {
		return r.getJSON(ctx, link, out)
	})
	return err
}

func (r *Resolver) endpoint(path string, query url.Values) string {
	return strings.TrimRight(r.BaseURL, "/") + path + "?" + query.Encode()
}
