package output

import (
	"os"
	"sync"
	"syscall"

	"github.com/spf13/afero"
)

// FileLock serializes runs of the same workflow across processes.
// On filesystems other than the OS filesystem it only serializes within the
// process.
type FileLock struct {
	fs   afero.Fs
	path string
	file *os.File
	mu   sync.Mutex
}

// NewFileLock creates a lock guarding path.
func NewFileLock(fs afero.Fs, path string) *FileLock {
	return &FileLock{fs: fs, path: path}
}

func (l *FileLock) osBacked() bool {
	_, ok := l.fs.(*afero.OsFs)
	return ok
}

// Lock acquires an exclusive lock.
func (l *FileLock) Lock() error {
	l.mu.Lock()
	if !l.osBacked() {
		return nil
	}

	var err error
	l.file, err = os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		l.mu.Unlock()
		return err
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX); err != nil {
		l.file.Close()
		l.file = nil
		l.mu.Unlock()
		return err
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() bool {
	if !l.mu.TryLock() {
		return false
	}
	if !l.osBacked() {
		return true
	}

	var err error
	l.file, err = os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		l.mu.Unlock()
		return false
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		l.file.Close()
		l.file = nil
		l.mu.Unlock()
		return false
	}
	return true
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	if l.file != nil {
		syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
		l.file.Close()
		os.Remove(l.path + ".lock")
		l.file = nil
	}
	l.mu.Unlock()
	return nil
}
