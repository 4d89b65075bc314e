package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

// snapshot — плоский файловый формат эфемерного бэкенда. Каталог в снапшот
// не входит: его источником всегда остаётся seed.
type snapshot struct {
	Clients []domain.Client `json:"clients"`
	Orders  []domain.Order  `json:"orders"`
}

// SaveSnapshot пишет клиентов и заказы в настроенный файл. Запись идёт через
// временный файл с переименованием, чтобы не оставить полузаписанный снапшот.
func (s *Store) SaveSnapshot() error {
	if s.snapshotPath == "" {
		return fmt.Errorf("snapshot path is not configured")
	}

	s.mu.RLock()
	snap := snapshot{Clients: s.clients, Orders: s.orders}
	raw, err := json.MarshalIndent(snap, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.logger.WithField("path", s.snapshotPath).Info("snapshot saved")
	return nil
}

func (s *Store) loadSnapshot() error {
	raw, err := os.ReadFile(s.snapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = snap.Clients
	if s.clients == nil {
		s.clients = []domain.Client{}
	}
	s.orders = snap.Orders
	if s.orders == nil {
		s.orders = []domain.Order{}
	}

	s.logger.WithFields(log.Fields{
		"path":    s.snapshotPath,
		"clients": len(s.clients),
		"orders":  len(s.orders),
	}).Info("snapshot loaded")
	return nil
}
