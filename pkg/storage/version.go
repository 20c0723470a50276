package storage

// PackageName and PackageVersion identify this client on the wire via the
// Code-Storage-Agent header.
const (
	PackageName    = "code-storage-client"
	PackageVersion = "1.2.0"
)

func userAgent() string {
	return PackageName + "/" + PackageVersion
}
