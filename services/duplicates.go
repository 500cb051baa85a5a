package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"flatsift/cache"
	"flatsift/models"
)

const (
	DefaultDuplicateThreshold = 15
	DefaultImageHashThreshold = 10
)

// KeyFunc extracts the exact-detection key values of a listing.
// No values means the listing cannot be matched on that key.
type KeyFunc func(l *models.Listing) []string

// ByID keys listings on their id
func ByID(l *models.Listing) []string {
	if l.ID == "" {
		return nil
	}
	return []string{l.ID}
}

// ByURLs keys listings on their urls
func ByURLs(l *models.Listing) []string {
	return l.URLs
}

// Detector finds duplicate listings, either on exact keys or by scoring pairs
type Detector struct {
	Precedence         Precedence
	DuplicateThreshold int
	ImageHashThreshold int
	PhotoWorkers       int

	photos *PhotoHasher
}

// NewDetector builds a detector with default thresholds. images may be nil,
// photos are then never compared.
func NewDetector(precedence Precedence, images ImageSource) *Detector {
	if len(precedence) == 0 {
		precedence = DefaultPrecedence
	}
	d := &Detector{
		Precedence:         precedence,
		DuplicateThreshold: DefaultDuplicateThreshold,
		ImageHashThreshold: DefaultImageHashThreshold,
		PhotoWorkers:       4,
	}
	if images != nil {
		d.photos = NewPhotoHasher(images)
	}
	return d
}

// Detect groups listings sharing a key value. With intersect, every value of
// the key is a bucket and listings sharing any of them end up together, then
// an id pass folds listings that were reached twice. Each group keeps its most
// trustworthy member, merged with the others when merge is set.
func (d *Detector) Detect(listings []*models.Listing, key KeyFunc, merge, intersect bool) ([]*models.Listing, []*models.Listing) {
	uf := newUnionFind(len(listings))
	first := make(map[string]int)
	for i, l := range listings {
		values := key(l)
		if len(values) == 0 {
			continue
		}
		if !intersect {
			values = []string{strings.Join(values, "\x00")}
		}
		for _, v := range values {
			if v == "" {
				continue
			}
			if j, ok := first[v]; ok {
				uf.union(j, i)
			} else {
				first[v] = i
			}
		}
	}

	survivors, duplicates := d.resolve(listings, uf, merge)
	if intersect {
		var more []*models.Listing
		survivors, more = d.Detect(survivors, ByID, merge, false)
		duplicates = append(duplicates, more...)
	}
	return survivors, duplicates
}

// DeepDetect compares every pair of listings and groups those scoring at
// least DuplicateThreshold, transitively. Groups are merged like exact
// duplicates.
func (d *Detector) DeepDetect(ctx context.Context, listings []*models.Listing) ([]*models.Listing, []*models.Listing) {
	start := time.Now()
	d.prefetchPhotos(ctx, listings)

	uf := newUnionFind(len(listings))
	for i := 0; i < len(listings); i++ {
		for j := i + 1; j < len(listings); j++ {
			score := d.DuplicateScore(ctx, listings[i], listings[j])
			if score < d.DuplicateThreshold {
				continue
			}
			log.Info().
				Str("listing", listings[i].ID).
				Str("duplicate_of", listings[j].ID).
				Int("score", score).
				Msg("found duplicate")
			uf.union(i, j)
		}
	}

	survivors, duplicates := d.resolve(listings, uf, true)
	log.Debug().
		Int("listings", len(listings)).
		Int("duplicates", len(duplicates)).
		Dur("elapsed", time.Since(start)).
		Msg("deep duplicate detection done")
	if d.photos != nil {
		if rates, ok := d.photos.images.(cache.RateReporter); ok {
			cache.LogRates(rates, "photos")
		}
	}
	return survivors, duplicates
}

func (d *Detector) prefetchPhotos(ctx context.Context, listings []*models.Listing) {
	if d.photos == nil {
		return
	}
	var urls []string
	for _, l := range listings {
		for _, p := range l.Photos {
			urls = append(urls, p.URL)
		}
	}
	d.photos.Prefetch(ctx, urls, d.PhotoWorkers)
}

// resolve turns union-find components into survivors and duplicates. Groups
// come out in order of their first member.
func (d *Detector) resolve(listings []*models.Listing, uf *unionFind, merge bool) ([]*models.Listing, []*models.Listing) {
	groups := make(map[int][]*models.Listing)
	var order []int
	for i, l := range listings {
		root := uf.find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], l)
	}

	var survivors, duplicates []*models.Listing
	for _, root := range order {
		group := groups[root]
		if len(group) == 1 {
			survivors = append(survivors, group[0])
			continue
		}

		sort.SliceStable(group, func(i, j int) bool {
			return d.Precedence.RankOf(group[i]) > d.Precedence.RankOf(group[j])
		})

		survivor := group[0]
		if merge {
			survivor = nil
			for i := len(group) - 1; i >= 0; i-- {
				survivor = MergeListings(survivor, group[i])
			}
		}
		survivors = append(survivors, survivor)
		duplicates = append(duplicates, group[1:]...)
	}
	return survivors, duplicates
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union keeps the smaller index as root so group order follows input order
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
