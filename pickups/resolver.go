package pickups

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/joshua0006/pineapple-tours--1--sub006/rezdy"
)

type Source string

const (
	SourceLocalFiles Source = "local_files"
	SourceRezdyAPI   Source = "rezdy_api"
	SourceNone       Source = "none"
)

// UpstreamFunc is the single-product pickup lookup used when the local index
// has nothing. Wiring typically routes it through the cache manager so
// repeated misses within the pickup ttl share one upstream call.
type UpstreamFunc func(ctx context.Context, productCode string) ([]rezdy.PickupLocation, error)

type Resolution struct {
	ProductCode string                 `json:"productCode"`
	Pickups     []rezdy.PickupLocation `json:"pickups"`
	Source      Source                 `json:"source"`
	Accuracy    string                 `json:"accuracy"`
}

type Resolver struct {
	index    *Index
	upstream UpstreamFunc
	logger   *logrus.Logger
}

func NewResolver(index *Index, upstream UpstreamFunc, logger *logrus.Logger) *Resolver {
	return &Resolver{index: index, upstream: upstream, logger: logger}
}

// Resolve walks local index -> upstream -> empty. Empty is a valid terminal
// state, not an error: a tour with no pickups resolves to "none" and the
// caller renders that. A repeated local miss repeats the upstream call; the
// index never self-heals from the request path, rebuilds are explicit.
func (r *Resolver) Resolve(ctx context.Context, productCode string) Resolution {
	productCode = strings.TrimSpace(productCode)
	if productCode == "" {
		return Resolution{Source: SourceNone, Accuracy: "low"}
	}

	if locations, ok := r.index.lookup(productCode); ok {
		return Resolution{
			ProductCode: productCode,
			Pickups:     locations,
			Source:      SourceLocalFiles,
			Accuracy:    "high",
		}
	}

	if r.upstream != nil {
		locations, err := r.upstream(ctx, productCode)
		if err != nil {
			// Exhaustion of the chain is a designed outcome; log and
			// fall through to the empty terminal state.
			r.logger.WithFields(logrus.Fields{
				"module":      "pickups",
				"productCode": productCode,
			}).Warn("upstream pickup lookup failed: " + err.Error())
		} else if len(locations) > 0 {
			return Resolution{
				ProductCode: productCode,
				Pickups:     locations,
				Source:      SourceRezdyAPI,
				Accuracy:    "low",
			}
		}
	}

	return Resolution{ProductCode: productCode, Source: SourceNone, Accuracy: "low"}
}
