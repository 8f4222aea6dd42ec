package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// Redis layout. Records are hashes keyed "TABLE|key"; lab names cannot
// contain '|' so keys split unambiguously.
//
//	LABS                      set of lab names
//	LAB|<lab>                 lab hash
//	HOST|<lab>|<hostname>     host hash
//	HOSTS|<lab>               list of hostnames, insertion order
//	LINK|<lab>|<id>           link hash
//	LINKS|<lab>               list of link ids, insertion order
//	LINK_KEY|<lab>|<identity> link id, enforces link identity uniqueness
const (
	labsKey = "LABS"
)

func labKey(name string) string { return "LAB|" + name }
func hostKey(lab, host string) string { return "HOST|" + lab + "|" + host }
func hostListKey(lab string) string { return "HOSTS|" + lab }
func linkKey(lab, id string) string { return "LINK|" + lab + "|" + id }
func linkListKey(lab string) string { return "LINKS|" + lab }
func linkIdentKey(lab, ident string) string { return "LINK_KEY|" + lab + "|" + ident }

// RedisStore persists the inventory in a Redis database.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and verifies the server answers PING.
func NewRedisStore(ctx context.Context, opts *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", opts.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) GetLab(ctx context.Context, name string) (*model.Lab, error) {
	vals, err := s.client.HGetAll(ctx, labKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading lab '%s': %w", name, err)
	}
	if len(vals) == 0 {
		return nil, labNotFound(name)
	}
	return labFromHash(name, vals), nil
}

func (s *RedisStore) ListLabs(ctx context.Context) ([]*model.Lab, error) {
	names, err := s.client.SMembers(ctx, labsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing labs: %w", err)
	}
	sort.Strings(names)
	labs := make([]*model.Lab, 0, len(names))
	for _, n := range names {
		l, err := s.GetLab(ctx, n)
		if errors.Is(err, util.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		labs = append(labs, l)
	}
	return labs, nil
}

func (s *RedisStore) GetHost(ctx context.Context, lab, hostname string) (*model.Host, error) {
	vals, err := s.client.HGetAll(ctx, hostKey(lab, hostname)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading host '%s': %w", hostname, err)
	}
	if len(vals) == 0 {
		return nil, hostNotFound(lab, hostname)
	}
	return hostFromHash(lab, hostname, vals), nil
}

func (s *RedisStore) FindHost(ctx context.Context, lab, fragment string) (*model.Host, error) {
	hosts, err := s.ListHosts(ctx, lab)
	if err != nil {
		return nil, err
	}
	h := matchHost(hosts, fragment)
	if h == nil {
		return nil, hostNotFound(lab, fragment)
	}
	return h, nil
}

func (s *RedisStore) ListHosts(ctx context.Context, lab string) ([]*model.Host, error) {
	names, err := s.client.LRange(ctx, hostListKey(lab), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing hosts in lab '%s': %w", lab, err)
	}
	hosts := make([]*model.Host, 0, len(names))
	for _, n := range names {
		h, err := s.GetHost(ctx, lab, n)
		if errors.Is(err, util.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

func (s *RedisStore) GetLink(ctx context.Context, lab, id string) (*model.Link, error) {
	vals, err := s.client.HGetAll(ctx, linkKey(lab, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading link %s: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, linkNotFound(lab, id)
	}
	return linkFromHash(lab, id, vals), nil
}

func (s *RedisStore) ListLinks(ctx context.Context, lab string) ([]*model.Link, error) {
	ids, err := s.client.LRange(ctx, linkListKey(lab), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing links in lab '%s': %w", lab, err)
	}
	links := make([]*model.Link, 0, len(ids))
	for _, id := range ids {
		l, err := s.GetLink(ctx, lab, id)
		if errors.Is(err, util.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

func (s *RedisStore) Begin(_ context.Context) (Tx, error) {
	return &redisTx{store: s}, nil
}

type redisTx struct {
	batch
	store *RedisStore
}

// Commit checks every op against the database under WATCH and then writes
// them in one MULTI/EXEC. A concurrent writer touching a watched key aborts
// the commit with nothing written.
func (t *redisTx) Commit(ctx context.Context) error {
	ops, err := t.finish()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	err = t.store.client.Watch(ctx, func(tx *redis.Tx) error {
		p := &redisPlan{ctx: ctx, tx: tx, created: map[string]bool{}, deleted: map[string]bool{}}
		for _, o := range ops {
			if err := p.add(o); err != nil {
				return err
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range p.writes {
				w(pipe)
			}
			return nil
		})
		return err
	}, watchKeys(ops)...)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("concurrent modification, nothing written: %w", err)
	}
	return err
}

// watchKeys lists the keys whose existence the plan depends on.
func watchKeys(ops []op) []string {
	var keys []string
	for _, o := range ops {
		switch o.kind {
		case opCreateLab, opUpdateLab:
			keys = append(keys, labKey(o.lab.Name))
		case opDeleteLab:
			keys = append(keys, labKey(o.name), hostListKey(o.name), linkListKey(o.name))
		case opAddHost:
			keys = append(keys, labKey(o.host.LabName), hostKey(o.host.LabName, o.host.Hostname))
		case opAddLink:
			keys = append(keys, labKey(o.link.LabName), linkIdentKey(o.link.LabName, o.link.Key()))
		case opUpdateLink:
			keys = append(keys, linkKey(o.link.LabName, o.link.ID))
		}
	}
	return keys
}

// redisPlan validates ops against the watched state plus the effects of
// earlier ops in the same batch, and accumulates the pipeline writes.
type redisPlan struct {
	ctx     context.Context
	tx      *redis.Tx
	created map[string]bool
	deleted map[string]bool
	writes  []func(redis.Pipeliner)
}

func (p *redisPlan) exists(key string) (bool, error) {
	if p.created[key] {
		return true, nil
	}
	if p.deleted[key] {
		return false, nil
	}
	n, err := p.tx.Exists(p.ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *redisPlan) write(w func(redis.Pipeliner)) {
	p.writes = append(p.writes, w)
}

func (p *redisPlan) create(key string) {
	p.created[key] = true
	delete(p.deleted, key)
}

func (p *redisPlan) add(o op) error {
	ctx := p.ctx
	switch o.kind {
	case opCreateLab:
		key := labKey(o.lab.Name)
		ok, err := p.exists(key)
		if err != nil {
			return err
		}
		if ok {
			return duplicate("lab '" + o.lab.Name + "'")
		}
		p.create(key)
		fields := labHash(o.lab)
		p.write(func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, key, fields)
			pipe.SAdd(ctx, labsKey, o.lab.Name)
		})

	case opUpdateLab:
		key := labKey(o.lab.Name)
		ok, err := p.exists(key)
		if err != nil {
			return err
		}
		if !ok {
			return labNotFound(o.lab.Name)
		}
		fields := labHash(o.lab)
		p.write(func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, key, fields)
		})

	case opDeleteLab:
		key := labKey(o.name)
		ok, err := p.exists(key)
		if err != nil {
			return err
		}
		if !ok {
			return labNotFound(o.name)
		}
		var doomed []string
		for _, pattern := range []string{"HOST|" + o.name + "|*", "LINK|" + o.name + "|*", "LINK_KEY|" + o.name + "|*"} {
			keys, err := scanKeys(ctx, p.tx, pattern)
			if err != nil {
				return err
			}
			doomed = append(doomed, keys...)
		}
		doomed = append(doomed, key, hostListKey(o.name), linkListKey(o.name))
		for _, k := range doomed {
			p.deleted[k] = true
			delete(p.created, k)
		}
		p.write(func(pipe redis.Pipeliner) {
			pipe.Del(ctx, doomed...)
			pipe.SRem(ctx, labsKey, o.name)
		})

	case opAddHost:
		h := o.host
		if ok, err := p.exists(labKey(h.LabName)); err != nil {
			return err
		} else if !ok {
			return labNotFound(h.LabName)
		}
		key := hostKey(h.LabName, h.Hostname)
		ok, err := p.exists(key)
		if err != nil {
			return err
		}
		if ok {
			return duplicate("host '" + h.Hostname + "' in lab '" + h.LabName + "'")
		}
		p.create(key)
		fields := hostHash(h)
		p.write(func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, key, fields)
			pipe.RPush(ctx, hostListKey(h.LabName), h.Hostname)
		})

	case opAddLink:
		l := o.link
		if ok, err := p.exists(labKey(l.LabName)); err != nil {
			return err
		} else if !ok {
			return labNotFound(l.LabName)
		}
		ident := linkIdentKey(l.LabName, l.Key())
		ok, err := p.exists(ident)
		if err != nil {
			return err
		}
		if ok {
			return duplicate("link " + l.String() + " in lab '" + l.LabName + "'")
		}
		key := linkKey(l.LabName, l.ID)
		p.create(ident)
		p.create(key)
		fields := linkHash(l)
		p.write(func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, key, fields)
			pipe.Set(ctx, ident, l.ID, 0)
			pipe.RPush(ctx, linkListKey(l.LabName), l.ID)
		})

	case opUpdateLink:
		l := o.link
		key := linkKey(l.LabName, l.ID)
		ok, err := p.exists(key)
		if err != nil {
			return err
		}
		if !ok {
			return linkNotFound(l.LabName, l.ID)
		}
		fields := linkMutableHash(l)
		p.write(func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, key, fields)
		})
	}
	return nil
}

type scanner interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// scanKeys iterates keys matching pattern with cursor-based SCAN.
func scanKeys(ctx context.Context, c scanner, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := c.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func labHash(l *model.Lab) map[string]interface{} {
	return map[string]interface{}{
		"lab_type":                     string(l.Type),
		"description":                  l.Description,
		"remote_containerlab_host":     l.RemoteHost,
		"remote_containerlab_username": l.RemoteUser,
		"topology_path":                l.TopologyPath,
		"containerlab_name":            l.ContainerlabName,
	}
}

func labFromHash(name string, v map[string]string) *model.Lab {
	return &model.Lab{
		Name:             name,
		Type:             model.LabType(v["lab_type"]),
		Description:      v["description"],
		RemoteHost:       v["remote_containerlab_host"],
		RemoteUser:       v["remote_containerlab_username"],
		TopologyPath:     v["topology_path"],
		ContainerlabName: v["containerlab_name"],
	}
}

func hostHash(h *model.Host) map[string]interface{} {
	return map[string]interface{}{
		"ip_address": h.IPAddress,
		"network_os": h.NetworkOS,
		"username":   h.Username,
		"password":   h.Password,
		"image_type": h.ImageType,
		"console":    h.Console,
	}
}

func hostFromHash(lab, hostname string, v map[string]string) *model.Host {
	return &model.Host{
		Hostname:  hostname,
		IPAddress: v["ip_address"],
		NetworkOS: v["network_os"],
		Username:  v["username"],
		Password:  v["password"],
		ImageType: v["image_type"],
		Console:   v["console"],
		LabName:   lab,
	}
}

func linkHash(l *model.Link) map[string]interface{} {
	fields := linkMutableHash(l)
	fields["source_host"] = l.SourceHost
	fields["source_interface"] = l.SourceInterface
	fields["destination_host"] = l.DestinationHost
	fields["destination_interface"] = l.DestinationInterface
	return fields
}

func linkMutableHash(l *model.Link) map[string]interface{} {
	fields := map[string]interface{}{"state": string(l.State)}
	for _, f := range model.ImpairmentFields {
		fields[string(f)] = strconv.Itoa(l.Impairment.Get(f))
	}
	return fields
}

func linkFromHash(lab, id string, v map[string]string) *model.Link {
	l := &model.Link{
		ID:                   id,
		SourceHost:           v["source_host"],
		SourceInterface:      v["source_interface"],
		DestinationHost:      v["destination_host"],
		DestinationInterface: v["destination_interface"],
		LabName:              lab,
		State:                model.LinkState(v["state"]),
	}
	if l.State == "" {
		l.State = model.LinkEnabled
	}
	for _, f := range model.ImpairmentFields {
		n, _ := strconv.Atoi(v[string(f)])
		l.Impairment.Set(f, n)
	}
	return l
}
