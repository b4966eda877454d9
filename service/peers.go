package service

import (
	"fmt"
	"regexp"
	"time"

	"github.com/dilshat/birthday-sender/model"
	"github.com/dilshat/birthday-sender/util"
	"go.uber.org/zap"
)

// RecordStore is the read-only source of birthday records
type RecordStore interface {
	ByDate(date time.Time) ([]model.BirthdayRecord, error)
	//ByGroup matches any year when year is empty
	ByGroup(department, year, groupId string) ([]model.BirthdayRecord, error)
	ByDepartment(department string) ([]model.BirthdayRecord, error)
}

// RandSource is satisfied by *math/rand.Rand
type RandSource interface {
	Intn(n int) int
}

// PeerSelector picks the people to notify about a birthday besides the subject
type PeerSelector interface {
	SelectPeers(record model.BirthdayRecord) ([]model.BirthdayRecord, error)
}

type peerSelector struct {
	store           RecordStore
	rnd             RandSource
	phoneRx         *regexp.Regexp
	maxStudentPeers int
	maxStaffPeers   int
	maxHod          int
}

func NewPeerSelector(store RecordStore, rnd RandSource, phoneRx *regexp.Regexp, maxStudentPeers, maxStaffPeers, maxHod int) PeerSelector {
	return &peerSelector{
		store:           store,
		rnd:             rnd,
		phoneRx:         phoneRx,
		maxStudentPeers: maxStudentPeers,
		maxStaffPeers:   maxStaffPeers,
		maxHod:          maxHod,
	}
}

func (s *peerSelector) SelectPeers(record model.BirthdayRecord) ([]model.BirthdayRecord, error) {
	if record.IsStudent() {
		return s.selectStudentPeers(record)
	}
	return s.selectStaffPeers(record)
}

func (s *peerSelector) selectStudentPeers(record model.BirthdayRecord) ([]model.BirthdayRecord, error) {
	if util.IsBlank(record.Department) || util.IsBlank(record.Year) || util.IsBlank(record.GroupId) {
		zap.L().Warn("Student record without department, year or group, no peers selected",
			zap.Uint32("record", record.Id))
		return nil, nil
	}

	group, err := s.store.ByGroup(record.Department, record.Year, record.GroupId)
	if err != nil {
		return nil, fmt.Errorf("querying group of record %d: %w", record.Id, err)
	}

	peers := s.eligible(record, group, func(r model.BirthdayRecord) bool {
		return r.PersonType == model.STUDENT && !r.IsHod
	})
	return sample(peers, s.maxStudentPeers, s.rnd), nil
}

func (s *peerSelector) selectStaffPeers(record model.BirthdayRecord) ([]model.BirthdayRecord, error) {
	if util.IsBlank(record.Department) {
		zap.L().Warn("Staff record without department, no peers selected", zap.Uint32("record", record.Id))
		return nil, nil
	}

	var peers []model.BirthdayRecord
	if !util.IsBlank(record.GroupId) {
		group, err := s.store.ByGroup(record.Department, "", record.GroupId)
		if err != nil {
			return nil, fmt.Errorf("querying group of record %d: %w", record.Id, err)
		}
		peers = sample(s.eligible(record, group, func(r model.BirthdayRecord) bool {
			return r.PersonType == model.STAFF && !r.IsHod
		}), s.maxStaffPeers, s.rnd)
	}

	department, err := s.store.ByDepartment(record.Department)
	if err != nil {
		return nil, fmt.Errorf("querying department of record %d: %w", record.Id, err)
	}
	hods := sample(s.eligible(record, department, func(r model.BirthdayRecord) bool {
		return r.IsHod
	}), s.maxHod, s.rnd)

	//a hod already notified as a peer counts once
	seen := make(map[string]bool, len(peers))
	for _, p := range peers {
		seen[p.Phone] = true
	}
	for _, h := range hods {
		if !seen[h.Phone] {
			seen[h.Phone] = true
			peers = append(peers, h)
		}
	}
	return peers, nil
}

// eligible filters out the subject, invalid phones and duplicate phones
func (s *peerSelector) eligible(subject model.BirthdayRecord, candidates []model.BirthdayRecord, accept func(model.BirthdayRecord) bool) []model.BirthdayRecord {
	var res []model.BirthdayRecord
	seen := make(map[string]bool)
	for _, c := range candidates {
		if c.Id == subject.Id || c.Phone == subject.Phone || !s.phoneRx.MatchString(c.Phone) {
			continue
		}
		if !accept(c) || seen[c.Phone] {
			continue
		}
		seen[c.Phone] = true
		res = append(res, c)
	}
	return res
}

// sample returns n records drawn uniformly without replacement, or all of them if there are not more than n
func sample(records []model.BirthdayRecord, n int, rnd RandSource) []model.BirthdayRecord {
	if n <= 0 {
		return nil
	}
	if len(records) <= n {
		return records
	}

	pool := append([]model.BirthdayRecord(nil), records...)
	for i := 0; i < n; i++ {
		j := i + rnd.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
