package ir

import "fmt"

// Linkage controls symbol visibility across modules.
type Linkage uint8

const (
	LinkageExternal Linkage = iota
	LinkageInternal
	LinkagePrivate
	LinkageWeak
	LinkageWeakODR
	LinkageLinkOnce
	LinkageLinkOnceODR
	LinkageCommon
	LinkageAppending
	LinkageExternWeak
	LinkageAvailableExternally
)

func (l Linkage) String() string {
	switch l {
	case LinkageExternal:
		return "external"
	case LinkageInternal:
		return "internal"
	case LinkagePrivate:
		return "private"
	case LinkageWeak:
		return "weak"
	case LinkageWeakODR:
		return "weak_odr"
	case LinkageLinkOnce:
		return "linkonce"
	case LinkageLinkOnceODR:
		return "linkonce_odr"
	case LinkageCommon:
		return "common"
	case LinkageAppending:
		return "appending"
	case LinkageExternWeak:
		return "extern_weak"
	case LinkageAvailableExternally:
		return "available_externally"
	default:
		return fmt.Sprintf("linkage(%d)", l)
	}
}

// Visibility is the ELF-style symbol visibility.
type Visibility uint8

const (
	VisibilityDefault Visibility = iota
	VisibilityHidden
	VisibilityProtected
)

func (v Visibility) String() string {
	switch v {
	case VisibilityHidden:
		return "hidden"
	case VisibilityProtected:
		return "protected"
	default:
		return ""
	}
}

// UnnamedAddr records whether the address of a global is significant.
type UnnamedAddr uint8

const (
	UnnamedAddrNone UnnamedAddr = iota
	UnnamedAddrLocal
	UnnamedAddrGlobal
)

func (u UnnamedAddr) String() string {
	switch u {
	case UnnamedAddrLocal:
		return "local_unnamed_addr"
	case UnnamedAddrGlobal:
		return "unnamed_addr"
	default:
		return ""
	}
}

// ThreadLocalMode selects the TLS model of a variable.
type ThreadLocalMode uint8

const (
	NotThreadLocal ThreadLocalMode = iota
	ThreadLocalGeneralDynamic
	ThreadLocalLocalDynamic
	ThreadLocalInitialExec
	ThreadLocalLocalExec
)

func (m ThreadLocalMode) String() string {
	switch m {
	case ThreadLocalGeneralDynamic:
		return "thread_local"
	case ThreadLocalLocalDynamic:
		return "thread_local(localdynamic)"
	case ThreadLocalInitialExec:
		return "thread_local(initialexec)"
	case ThreadLocalLocalExec:
		return "thread_local(localexec)"
	default:
		return ""
	}
}

// DLLStorage is the Windows DLL storage class.
type DLLStorage uint8

const (
	DLLStorageDefault DLLStorage = iota
	DLLStorageImport
	DLLStorageExport
)

func (d DLLStorage) String() string {
	switch d {
	case DLLStorageImport:
		return "dllimport"
	case DLLStorageExport:
		return "dllexport"
	default:
		return ""
	}
}

// SelectionKind decides how the linker picks between comdat copies.
type SelectionKind uint8

const (
	SelectAny SelectionKind = iota
	SelectExactMatch
	SelectLargest
	SelectNoDeduplicate
	SelectSameSize
)

func (s SelectionKind) String() string {
	switch s {
	case SelectAny:
		return "any"
	case SelectExactMatch:
		return "exactmatch"
	case SelectLargest:
		return "largest"
	case SelectNoDeduplicate:
		return "nodeduplicate"
	case SelectSameSize:
		return "samesize"
	default:
		return fmt.Sprintf("selection(%d)", s)
	}
}

// Comdat is a named group of globals that the linker keeps or drops as a unit.
type Comdat struct {
	Name      string
	Selection SelectionKind
}
