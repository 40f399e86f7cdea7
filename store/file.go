package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// File 单个 JSON 文件保存全部账号（username -> Account），每次写入整体落盘
type File struct {
	path string

	mu       sync.Mutex
	accounts map[string]*Account
}

// OpenFile 读取已有文件；文件不存在时从空集合开始
func OpenFile(path string) (*File, error) {
	f := &File{path: path, accounts: make(map[string]*Account)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f.accounts); err != nil {
		return nil, fmt.Errorf("decode accounts file: %w", err)
	}
	for name, acc := range f.accounts {
		acc.Username = name
	}
	return f, nil
}

var _ Store = (*File)(nil)

func (f *File) Create(ctx context.Context, acc *Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[acc.Username]; ok {
		return ErrAccountExists
	}
	f.accounts[acc.Username] = acc.Clone()
	if err := f.flushLocked(); err != nil {
		delete(f.accounts, acc.Username)
		return err
	}
	return nil
}

func (f *File) Load(ctx context.Context, username string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (f *File) Save(ctx context.Context, acc *Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, existed := f.accounts[acc.Username]
	f.accounts[acc.Username] = acc.Clone()
	if err := f.flushLocked(); err != nil {
		if existed {
			f.accounts[acc.Username] = prev
		} else {
			delete(f.accounts, acc.Username)
		}
		return err
	}
	return nil
}

func (f *File) List(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.accounts))
	for name := range f.accounts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (f *File) Close() error { return nil }

// flushLocked 先写临时文件再 rename，避免写一半的文件覆盖旧数据
func (f *File) flushLocked() error {
	data, err := json.MarshalIndent(f.accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".accounts-*.json")
	if err != nil {
		return fmt.Errorf("create temp accounts file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write accounts: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close accounts: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace accounts file: %w", err)
	}
	return nil
}
