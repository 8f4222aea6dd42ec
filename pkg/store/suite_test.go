package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// runStoreSuite exercises the Store contract against any backend. newStore
// must return an empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	seed := func(t *testing.T, s Store, name string, typ model.LabType) {
		t.Helper()
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.CreateLab(&model.Lab{Name: name, Type: typ}))
		require.NoError(t, tx.Commit(ctx))
	}

	addHosts := func(s Store, lab string, names ...string) error {
		tx, err := s.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		for _, n := range names {
			if err := tx.AddHost(&model.Host{Hostname: n, LabName: lab, NetworkOS: "linux"}); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	}

	t.Run("lab create get list", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "beta", model.LabHardware)
		seed(t, s, "alpha", model.LabContainerlab)

		l, err := s.GetLab(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, model.LabContainerlab, l.Type)

		labs, err := s.ListLabs(ctx)
		require.NoError(t, err)
		require.Len(t, labs, 2)
		assert.Equal(t, "alpha", labs[0].Name)
		assert.Equal(t, "beta", labs[1].Name)

		_, err = s.GetLab(ctx, "missing")
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("duplicate lab", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "lab", model.LabHardware)

		tx, _ := s.Begin(ctx)
		require.NoError(t, tx.CreateLab(&model.Lab{Name: "lab", Type: model.LabHardware}))
		err := tx.Commit(ctx)
		assert.True(t, errors.Is(err, util.ErrAlreadyExists), "got %v", err)
	})

	t.Run("update lab", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "lab", model.LabContainerlab)

		tx, _ := s.Begin(ctx)
		require.NoError(t, tx.UpdateLab(&model.Lab{Name: "lab", Type: model.LabContainerlab, ContainerlabName: "dc1"}))
		require.NoError(t, tx.Commit(ctx))

		l, err := s.GetLab(ctx, "lab")
		require.NoError(t, err)
		assert.Equal(t, "dc1", l.ContainerlabName)

		tx, _ = s.Begin(ctx)
		require.NoError(t, tx.UpdateLab(&model.Lab{Name: "ghost", Type: model.LabHardware}))
		assert.True(t, errors.Is(tx.Commit(ctx), util.ErrNotFound))
	})

	t.Run("host batch is all or nothing", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "lab", model.LabHardware)

		require.NoError(t, addHosts(s, "lab", "r1", "r2"))

		err := addHosts(s, "lab", "r3", "r1")
		assert.True(t, errors.Is(err, util.ErrAlreadyExists), "got %v", err)

		hosts, err := s.ListHosts(ctx, "lab")
		require.NoError(t, err)
		require.Len(t, hosts, 2)
		assert.Equal(t, "r1", hosts[0].Hostname)
		assert.Equal(t, "r2", hosts[1].Hostname)
	})

	t.Run("duplicate within one batch", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "lab", model.LabHardware)

		err := addHosts(s, "lab", "r1", "r1")
		assert.True(t, errors.Is(err, util.ErrAlreadyExists), "got %v", err)

		hosts, _ := s.ListHosts(ctx, "lab")
		assert.Empty(t, hosts)
	})

	t.Run("hostnames scoped per lab", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "a", model.LabHardware)
		seed(t, s, "b", model.LabHardware)

		require.NoError(t, addHosts(s, "a", "r1"))
		require.NoError(t, addHosts(s, "b", "r1"))
	})

	t.Run("host requires lab", func(t *testing.T) {
		s := newStore(t)
		err := addHosts(s, "nolab", "r1")
		assert.True(t, errors.Is(err, util.ErrNotFound), "got %v", err)
	})

	t.Run("find host", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "lab", model.LabHardware)
		require.NoError(t, addHosts(s, "lab", "leaf10", "leaf1", "spine1"))

		h, err := s.FindHost(ctx, "lab", "leaf1")
		require.NoError(t, err)
		assert.Equal(t, "leaf1", h.Hostname, "exact match wins")

		h, err = s.FindHost(ctx, "lab", "spine")
		require.NoError(t, err)
		assert.Equal(t, "spine1", h.Hostname)

		h, err = s.FindHost(ctx, "lab", "leaf")
		require.NoError(t, err)
		assert.Equal(t, "leaf10", h.Hostname, "first in insertion order")

		_, err = s.FindHost(ctx, "lab", "border")
		assert.True(t, errors.Is(err, util.ErrNotFound))

		_, err = s.FindHost(ctx, "lab", "")
		assert.True(t, errors.Is(err, util.ErrNotFound))

		h, err = s.GetHost(ctx, "lab", "leaf1")
		require.NoError(t, err)
		assert.Equal(t, "linux", h.NetworkOS)
	})

	t.Run("links", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "lab", model.LabContainerlab)

		l1 := model.NewLink("lab", "r1", "eth1", "r2", "eth1")
		l2 := model.NewLink("lab", "r1", "eth2", "r3", "eth1")
		tx, _ := s.Begin(ctx)
		require.NoError(t, tx.AddLink(l1))
		require.NoError(t, tx.AddLink(l2))
		require.NoError(t, tx.Commit(ctx))

		links, err := s.ListLinks(ctx, "lab")
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, l1.ID, links[0].ID)
		assert.Equal(t, model.LinkEnabled, links[0].State)

		dup := model.NewLink("lab", "r1", "eth1", "r2", "eth1")
		tx, _ = s.Begin(ctx)
		require.NoError(t, tx.AddLink(dup))
		assert.True(t, errors.Is(tx.Commit(ctx), util.ErrAlreadyExists))

		l1.State = model.LinkDisabled
		l1.Latency = 50
		l1.Jitter = 10
		l1.SourceHost = "ignored"
		tx, _ = s.Begin(ctx)
		require.NoError(t, tx.UpdateLink(l1))
		require.NoError(t, tx.Commit(ctx))

		got, err := s.GetLink(ctx, "lab", l1.ID)
		require.NoError(t, err)
		assert.Equal(t, model.LinkDisabled, got.State)
		assert.Equal(t, 50, got.Latency)
		assert.Equal(t, 10, got.Jitter)
		assert.Equal(t, "r1", got.SourceHost, "endpoints are immutable")

		_, err = s.GetLink(ctx, "lab", "nope")
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("delete lab cascades", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "lab", model.LabContainerlab)
		seed(t, s, "other", model.LabContainerlab)
		require.NoError(t, addHosts(s, "lab", "r1", "r2"))
		require.NoError(t, addHosts(s, "other", "r1"))

		tx, _ := s.Begin(ctx)
		require.NoError(t, tx.AddLink(model.NewLink("lab", "r1", "eth1", "r2", "eth1")))
		require.NoError(t, tx.Commit(ctx))

		tx, _ = s.Begin(ctx)
		require.NoError(t, tx.DeleteLab("lab"))
		require.NoError(t, tx.Commit(ctx))

		_, err := s.GetLab(ctx, "lab")
		assert.True(t, errors.Is(err, util.ErrNotFound))
		hosts, _ := s.ListHosts(ctx, "lab")
		assert.Empty(t, hosts)
		links, _ := s.ListLinks(ctx, "lab")
		assert.Empty(t, links)

		hosts, _ = s.ListHosts(ctx, "other")
		assert.Len(t, hosts, 1)

		// Re-creating the lab starts clean; the old link identity is gone.
		seed(t, s, "lab", model.LabContainerlab)
		tx, _ = s.Begin(ctx)
		require.NoError(t, tx.AddLink(model.NewLink("lab", "r1", "eth1", "r2", "eth1")))
		require.NoError(t, tx.Commit(ctx))
	})

	t.Run("finished tx", func(t *testing.T) {
		s := newStore(t)
		tx, _ := s.Begin(ctx)
		require.NoError(t, tx.Commit(ctx))
		assert.ErrorIs(t, tx.CreateLab(&model.Lab{Name: "x", Type: model.LabHardware}), ErrTxDone)
		assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
		assert.NoError(t, tx.Rollback())
	})

	t.Run("invalid records rejected at queue time", func(t *testing.T) {
		s := newStore(t)
		tx, _ := s.Begin(ctx)
		defer tx.Rollback()
		assert.True(t, errors.Is(tx.CreateLab(&model.Lab{Name: "bad name", Type: model.LabHardware}), util.ErrValidationFailed))
		l := model.NewLink("lab", "r1", "eth1", "r2", "eth1")
		l.Rate = -5
		assert.True(t, errors.Is(tx.AddLink(l), util.ErrValidationFailed))
	})
}
