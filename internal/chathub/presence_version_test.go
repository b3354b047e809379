package chathub

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"livedesk/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_VersionOrderMatchesContent(t *testing.T) {
	p := NewPresenceTracker()

	p.Track(&models.User{ID: "r1", Role: models.RoleResponder})
	s1 := p.snapshot(0, false)
	p.Track(&models.User{ID: "r2", Role: models.RoleResponder})
	s2 := p.snapshot(0, false)

	assert.Greater(t, s2.Version, s1.Version)
	assert.Len(t, s1.Responders, 1)
	assert.Len(t, s2.Responders, 2)
}

func TestSnapshot_ConcurrentStampsNeverRegress(t *testing.T) {
	p := NewPresenceTracker()

	const n = 32
	snaps := make(chan models.PresenceSnapshot, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Track(&models.User{ID: fmt.Sprintf("r%02d", i), Role: models.RoleResponder})
			snaps <- p.snapshot(0, false)
		}(i)
	}
	wg.Wait()
	close(snaps)

	// Identities are only added here, so a higher version must never carry
	// a shorter responder list.
	sizeByVersion := make(map[uint64]int, n)
	for s := range snaps {
		sizeByVersion[s.Version] = len(s.Responders)
	}
	versions := make([]uint64, 0, len(sizeByVersion))
	for v := range sizeByVersion {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	prev := 0
	for _, v := range versions {
		require.GreaterOrEqual(t, sizeByVersion[v], prev)
		prev = sizeByVersion[v]
	}
}
