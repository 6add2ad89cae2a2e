package job

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key derives the stable job key for a (dataset, owner) pair: the sha256 hex
// digest of the NUL-joined owner and dataset name. The same pair always maps
// to the same key, so resubmitting a dataset overwrites its job record and
// clients can compute the key without a server round trip. The 64-character
// result is the primary key of the dataset_jobs table.
func Key(dataset, owner string) string {
	sum := sha256.Sum256([]byte(owner + "\x00" + dataset))
	return hex.EncodeToString(sum[:])
}
