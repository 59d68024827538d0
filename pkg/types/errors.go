package types

// ConstError is a string-backed error so sentinels can be declared as
// constants and matched with errors.Is through any number of
// fmt.Errorf("...: %w") wrappings.
type ConstError string

func (err ConstError) Error() string { return string(err) }

// The stable error taxonomy of the public API.
const (
	NotFoundErr             ConstError = "not found"
	AlreadyExistsErr        ConstError = "already exists"
	PermissionDeniedErr     ConstError = "permission denied"
	InvalidPathErr          ConstError = "invalid path"
	InvalidArgumentErr      ConstError = "invalid argument"
	NotEmptyErr             ConstError = "directory not empty"
	DiskFullErr             ConstError = "disk full"
	IOErr                   ConstError = "i/o error"
	CorruptionDetectedErr   ConstError = "corruption detected"
	UnsupportedOperationErr ConstError = "unsupported operation"
)

// Internal conditions surfaced alongside the taxonomy.
const (
	NotADirErr          ConstError = "not a directory"
	IsADirErr           ConstError = "is a directory"
	NameTooLongErr      ConstError = "name too long"
	ReadOnlyErr         ConstError = "file system is read-only"
	TooManyOpenFilesErr ConstError = "too many open files"
	InvalidPointerErr   ConstError = "invalid block pointer"
	BadDescriptorErr    ConstError = "bad file descriptor"
	NotMountedErr       ConstError = "file system not mounted"
)
