package segment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"texswap/internal/codec"
	"texswap/internal/config"
	"texswap/internal/raster"
	"texswap/pkg/colorutil"
)

// ErrNoMatchingSegment is returned when the service finds no countertop label.
var ErrNoMatchingSegment = errors.New("no countertop segment in response")

// Remote calls an HTTP semantic-segmentation service. The image is POSTed as
// PNG; the service answers with a JSON list of labelled base64 PNG masks.
type Remote struct {
	endpoint string
	token    string
	labels   []string
	client   *http.Client
}

type remoteSegment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Mask  string  `json:"mask"`
}

func NewRemote(cfg config.RemoteConfig) *Remote {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	labels := make([]string, len(cfg.Labels))
	for i, l := range cfg.Labels {
		labels[i] = strings.ToLower(l)
	}
	return &Remote{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		labels:   labels,
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Segment(ctx context.Context, img *image.RGBA) (*Result, error) {
	if err := raster.CheckImage(img); err != nil {
		return nil, err
	}
	if r.endpoint == "" {
		return nil, errors.New("remote segmenter has no endpoint")
	}

	body, err := codec.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "segmentation request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("segmentation service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var segments []remoteSegment
	if err := json.NewDecoder(resp.Body).Decode(&segments); err != nil {
		return nil, errors.Wrap(err, "failed to decode segmentation response")
	}

	b := img.Bounds()
	mask := raster.NewMask(b.Dx(), b.Dy())
	best := 0.0
	matched := false
	for _, seg := range segments {
		if !r.wants(seg.Label) {
			continue
		}
		m, err := decodeMask(seg.Mask)
		if err != nil {
			return nil, errors.Wrapf(err, "segment %q", seg.Label)
		}
		if m.Width != mask.Width || m.Height != mask.Height {
			return nil, errors.Wrapf(raster.ErrDimensionMismatch, "segment %q is %dx%d", seg.Label, m.Width, m.Height)
		}
		for i, v := range m.Pix {
			if v > 0 {
				mask.Pix[i] = 255
			}
		}
		matched = true
		if seg.Score > best {
			best = seg.Score
		}
	}
	if !matched {
		return nil, ErrNoMatchingSegment
	}
	return NewResult(mask, min(max(best, 0), 1), r.Name()), nil
}

func (r *Remote) wants(label string) bool {
	label = strings.ToLower(label)
	for _, l := range r.labels {
		if strings.Contains(label, l) {
			return true
		}
	}
	return false
}

// decodeMask decodes a base64 PNG (optionally a data URL) into a binary mask.
func decodeMask(s string) (raster.Mask, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return raster.Mask{}, errors.Wrap(err, "invalid base64 mask")
	}
	img, err := codec.Decode(data)
	if err != nil {
		return raster.Mask{}, err
	}

	b := img.Bounds()
	m := raster.NewMask(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			o := img.PixOffset(x, y)
			if colorutil.Luma(img.Pix[o], img.Pix[o+1], img.Pix[o+2]) >= 128 {
				m.Pix[y*m.Width+x] = 255
			}
		}
	}
	return m, nil
}
