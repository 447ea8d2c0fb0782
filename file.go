package schedz

import "sync"

// Minimal models of the file-system objects the lifecycle code consumes:
// refcounted open files (filedup/fileclose), refcounted inodes for the
// working directory (idup/iput), and the log transaction brackets that
// guard the iput path. The file system proper is out of scope; these exist
// so fork duplicates descriptors and exit drops them with real refcounts.

type file struct {
	mu   sync.Mutex
	ref  int
	name string
}

func newFile(name string) *file {
	return &file{ref: 1, name: name}
}

func (f *file) dup() *file {
	f.mu.Lock()
	if f.ref < 1 {
		panic("filedup")
	}
	f.ref++
	f.mu.Unlock()
	return f
}

func (f *file) close() {
	f.mu.Lock()
	if f.ref < 1 {
		panic("fileclose")
	}
	f.ref--
	f.mu.Unlock()
}

type inode struct {
	mu   sync.Mutex
	ref  int
	path string
}

func (ip *inode) idup() *inode {
	ip.mu.Lock()
	ip.ref++
	ip.mu.Unlock()
	return ip
}

func (ip *inode) iput() {
	ip.mu.Lock()
	if ip.ref < 1 {
		panic("iput")
	}
	ip.ref--
	ip.mu.Unlock()
}

// fsLog brackets inode releases the way the journal does. Only the
// outermost structure is modeled: an operation counter under a mutex.
type fsLog struct {
	mu          sync.Mutex
	outstanding int
}

func (l *fsLog) beginOp() {
	l.mu.Lock()
	l.outstanding++
	l.mu.Unlock()
}

func (l *fsLog) endOp() {
	l.mu.Lock()
	if l.outstanding < 1 {
		panic("endOp")
	}
	l.outstanding--
	l.mu.Unlock()
}
