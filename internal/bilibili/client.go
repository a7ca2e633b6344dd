// Package bilibili is a minimal, faithful stand-in for the real Bilibili
// wire client (§1 Non-goals: the actual API surface, WBI signing, and risk
// control evasion are out of scope). It implements upstream.Client against
// the real bilibili.com JSON endpoints with the auth cookies a caller
// already holds, so the rest of the module can be exercised end to end
// without a mocked transport, but it does not attempt to replicate every
// endpoint quirk or sign requests the way the official clients do.
package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/snapetech/bili-sync/internal/upstream"
)

// Credentials carries the session cookies a caller scrapes from a logged-in
// browser (§4.11 env vars BILI_SYNC_SESSDATA/BILI_SYNC_BILI_JCT/..., read
// by internal/config). Nothing in this package
// performs the login flow itself.
type Credentials struct {
	SESSDATA        string
	BiliJCT         string
	Buvid3          string
	Buvid4          string
	DedeUserID      string
	DedeUserIDCKMD5 string
	ACTimeValue     string
}

// Client is the faithful stand-in upstream.Client implementation.
type Client struct {
	HTTP  *http.Client
	Creds Credentials
}

func New(httpClient *http.Client, creds Credentials) *Client {
	return &Client{HTTP: httpClient, Creds: creds}
}

func (c *Client) do(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	c.attachCookies(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		status := upstream.Classify(upstream.BusinessStatus{NetworkError: err})
		return upstream.NewClassifiedError(status, 0, fmt.Errorf("bilibili: %s: %w", endpoint, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status := upstream.Classify(upstream.BusinessStatus{HTTPStatus: resp.StatusCode})
		return upstream.NewClassifiedError(status, resp.StatusCode, fmt.Errorf("bilibili: %s: status %d", endpoint, resp.StatusCode))
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("bilibili: %s: decode: %w", endpoint, err)
	}
	// -412/-352 are bilibili's own risk-control challenge markers, carried
	// in the business code rather than the HTTP status.
	riskControlHit := envelope.Code == -412 || envelope.Code == -352
	if riskControlHit || envelope.Code != 0 {
		status := upstream.Classify(upstream.BusinessStatus{
			HTTPStatus:     resp.StatusCode,
			BusinessCode:   envelope.Code,
			RiskControlHit: riskControlHit,
		})
		return upstream.NewClassifiedError(status, resp.StatusCode, fmt.Errorf("bilibili: %s: code %d: %s", endpoint, envelope.Code, envelope.Message))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func (c *Client) attachCookies(req *http.Request) {
	add := func(name, value string) {
		if value != "" {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
	}
	add("SESSDATA", c.Creds.SESSDATA)
	add("bili_jct", c.Creds.BiliJCT)
	add("buvid3", c.Creds.Buvid3)
	add("buvid4", c.Creds.Buvid4)
	add("DedeUserID", c.Creds.DedeUserID)
	add("DedeUserID__ckMd5", c.Creds.DedeUserIDCKMD5)
	add("ac_time_value", c.Creds.ACTimeValue)
}

const (
	apiFavoriteList    = "https://api.bilibili.com/x/v3/fav/resource/list"
	apiSpaceCollection = "https://api.bilibili.com/x/polymer/web-space/seasons_series_list"
	apiSpaceArchive    = "https://api.bilibili.com/x/space/wbi/arc/search"
	apiWatchLater      = "https://api.bilibili.com/x/v2/history/toview"
	apiBangumiSeason   = "https://api.bilibili.com/pgc/view/web/season"
	apiViewDetail      = "https://api.bilibili.com/x/web-interface/view"
	apiPlayURL         = "https://api.bilibili.com/x/player/playurl"
)

func (c *Client) ListFavorite(ctx context.Context, favoriteID string, page int) (*upstream.ListPage, error) {
	q := url.Values{"media_id": {favoriteID}, "pn": {strconv.Itoa(page)}, "ps": {"20"}}
	var body struct {
		Medias  []favMedia `json:"medias"`
		HasMore bool       `json:"has_more"`
	}
	if err := c.do(ctx, apiFavoriteList, q, &body); err != nil {
		return nil, err
	}
	out := &upstream.ListPage{HasMore: body.HasMore}
	for _, m := range body.Medias {
		out.Items = append(out.Items, upstream.CandidateItem{
			UpstreamID:   m.BVID,
			Title:        m.Title,
			UploaderID:   strconv.FormatInt(m.Upper.Mid, 10),
			UploaderName: m.Upper.Name,
			CoverURL:     m.Cover,
			PublishTime:  time.Unix(m.PubTime, 0),
		})
	}
	return out, nil
}

type favMedia struct {
	BVID  string `json:"bvid"`
	Title string `json:"title"`
	Cover string `json:"cover"`
	Upper struct {
		Mid  int64  `json:"mid"`
		Name string `json:"name"`
	} `json:"upper"`
	PubTime int64 `json:"pubtime"`
}

func (c *Client) ListCollection(ctx context.Context, mid, seasonID, collectionType string, page int) (*upstream.ListPage, error) {
	q := url.Values{"mid": {mid}, "season_id": {seasonID}, "sort_reverse": {"false"}, "page_num": {strconv.Itoa(page)}, "page_size": {"20"}}
	if collectionType != "" {
		q.Set("type", collectionType)
	}
	var body struct {
		Archives []spaceArchive `json:"archives"`
		Page     struct {
			Num   int `json:"page_num"`
			Size  int `json:"page_size"`
			Total int `json:"total"`
		} `json:"page"`
	}
	if err := c.do(ctx, apiSpaceCollection, q, &body); err != nil {
		return nil, err
	}
	out := &upstream.ListPage{HasMore: body.Page.Num*body.Page.Size < body.Page.Total}
	for _, a := range body.Archives {
		out.Items = append(out.Items, upstream.CandidateItem{
			UpstreamID:  a.BVID,
			Title:       a.Title,
			CoverURL:    a.Cover,
			PublishTime: time.Unix(a.PubTime, 0),
		})
	}
	return out, nil
}

type spaceArchive struct {
	BVID    string `json:"bvid"`
	Title   string `json:"title"`
	Cover   string `json:"pic"`
	PubTime int64  `json:"pubdate"`
}

func (c *Client) ListSubmissions(ctx context.Context, mid string, page int) (*upstream.ListPage, error) {
	q := url.Values{"mid": {mid}, "pn": {strconv.Itoa(page)}, "ps": {"30"}, "order": {"pubdate"}}
	var body struct {
		List struct {
			Vlist []spaceArchive `json:"vlist"`
		} `json:"list"`
		Page struct {
			PN    int `json:"pn"`
			PS    int `json:"ps"`
			Count int `json:"count"`
		} `json:"page"`
	}
	if err := c.do(ctx, apiSpaceArchive, q, &body); err != nil {
		return nil, err
	}
	out := &upstream.ListPage{HasMore: body.Page.PN*body.Page.PS < body.Page.Count}
	for _, a := range body.List.Vlist {
		out.Items = append(out.Items, upstream.CandidateItem{
			UpstreamID:   a.BVID,
			Title:        a.Title,
			UploaderID:   mid,
			CoverURL:     a.Cover,
			PublishTime:  time.Unix(a.PubTime, 0),
		})
	}
	return out, nil
}

func (c *Client) ListWatchLater(ctx context.Context) (*upstream.ListPage, error) {
	var body struct {
		List []spaceArchive `json:"list"`
	}
	if err := c.do(ctx, apiWatchLater, url.Values{}, &body); err != nil {
		return nil, err
	}
	out := &upstream.ListPage{HasMore: false}
	for _, a := range body.List {
		out.Items = append(out.Items, upstream.CandidateItem{
			UpstreamID:  a.BVID,
			Title:       a.Title,
			CoverURL:    a.Cover,
			PublishTime: time.Unix(a.PubTime, 0),
		})
	}
	return out, nil
}

func (c *Client) ListSeasonEpisodes(ctx context.Context, seasonID string) (*upstream.ListPage, error) {
	q := url.Values{"season_id": {seasonID}}
	var body struct {
		Result struct {
			Episodes []struct {
				EpID  int64  `json:"ep_id"`
				BVID  string `json:"bvid"`
				Title string `json:"long_title"`
				Cover string `json:"cover"`
				PubTime int64 `json:"pub_time"`
			} `json:"episodes"`
		} `json:"result"`
	}
	if err := c.do(ctx, apiBangumiSeason, q, &body); err != nil {
		return nil, err
	}
	out := &upstream.ListPage{HasMore: false}
	for _, e := range body.Result.Episodes {
		out.Items = append(out.Items, upstream.CandidateItem{
			UpstreamID:  e.BVID,
			SeasonID:    seasonID,
			EpisodeID:   strconv.FormatInt(e.EpID, 10),
			Title:       e.Title,
			CoverURL:    e.Cover,
			PublishTime: time.Unix(e.PubTime, 0),
		})
	}
	return out, nil
}

func (c *Client) FetchItemDetail(ctx context.Context, upstreamID string) (*upstream.ItemDetail, error) {
	q := url.Values{"bvid": {upstreamID}}
	var body struct {
		Pages []struct {
			CID      int64  `json:"cid"`
			Page     int    `json:"page"`
			Part     string `json:"part"`
			Duration int    `json:"duration"`
			Dimension struct {
				Width  int `json:"width"`
				Height int `json:"height"`
			} `json:"dimension"`
		} `json:"pages"`
	}
	if err := c.do(ctx, apiViewDetail, q, &body); err != nil {
		return nil, err
	}
	detail := &upstream.ItemDetail{}
	for _, p := range body.Pages {
		detail.Pages = append(detail.Pages, upstream.CandidatePage{
			PID:         p.Page,
			Title:       p.Part,
			UpstreamCID: strconv.FormatInt(p.CID, 10),
			Duration:    time.Duration(p.Duration) * time.Second,
			Width:       p.Dimension.Width,
			Height:      p.Dimension.Height,
		})
	}
	return detail, nil
}

func (c *Client) FetchStreamManifest(ctx context.Context, upstreamID string, pid int) (*upstream.StreamManifest, error) {
	q := url.Values{"bvid": {upstreamID}, "cid": {strconv.Itoa(pid)}, "fnval": {"4048"}, "fourk": {"1"}}
	var body struct {
		Dash struct {
			Video []dashStream `json:"video"`
			Audio []dashStream `json:"audio"`
		} `json:"dash"`
	}
	if err := c.do(ctx, apiPlayURL, q, &body); err != nil {
		return nil, err
	}
	manifest := &upstream.StreamManifest{}
	for _, v := range body.Dash.Video {
		manifest.Variants = append(manifest.Variants, upstream.StreamVariant{
			Kind: "video", Codec: v.Codecs, Quality: v.ID,
			IsHDR: v.HDR != 0, URL: v.BaseURL,
		})
	}
	for _, a := range body.Dash.Audio {
		manifest.Variants = append(manifest.Variants, upstream.StreamVariant{
			Kind: "audio", Codec: a.Codecs, Quality: a.ID,
			IsDolby: a.ID == 30250, IsHiRes: a.ID == 30251, URL: a.BaseURL,
		})
	}
	return manifest, nil
}

type dashStream struct {
	ID      int    `json:"id"`
	BaseURL string `json:"baseUrl"`
	Codecs  string `json:"codecs"`
	HDR     int    `json:"hdr,omitempty"`
}

func (c *Client) FetchBytes(ctx context.Context, rawURL string, rangeStart, rangeEnd int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	c.attachCookies(req)
	req.Header.Set("Referer", "https://www.bilibili.com/")
	if rangeEnd > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rangeStart, rangeEnd))
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		status := upstream.Classify(upstream.BusinessStatus{HTTPStatus: resp.StatusCode})
		return nil, upstream.NewClassifiedError(status, resp.StatusCode, fmt.Errorf("bilibili: fetch bytes: status %d", resp.StatusCode))
	}

	buf := make([]byte, 0, 1<<20)
	tmp := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return buf, nil
}
