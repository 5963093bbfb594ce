package naming

import (
	"fmt"
	"strconv"
	"strings"
)

// PartitionSuffix separates a topic's base name from its partition index in
// backend names, e.g. "tenant/ns/orders-partition-3". A plain "-<N>" ending is
// not treated as a suffix: client topic names like "events-0" are legal and
// must survive the round trip unchanged.
const PartitionSuffix = "-partition-"

// NoPartition marks an identity that references the whole topic rather than
// one partition of it.
const NoPartition int32 = -1

// Defaults carries the metadata tenant and namespace applied to client names
// that omit them.
type Defaults struct {
	Tenant    string
	Namespace string
}

// Identity is the backend-native reference to a topic or one of its
// partitions.
type Identity struct {
	Tenant    string
	Namespace string
	Local     string
	Partition int32
}

// Parse maps a client-visible topic name to its backend identity. Accepted
// forms are "local" and "tenant/namespace/local", each optionally carrying a
// partition suffix. Tenant and namespace default from d when omitted.
func Parse(clientName string, d Defaults) (Identity, error) {
	id := Identity{Tenant: d.Tenant, Namespace: d.Namespace, Partition: NoPartition}

	name := clientName
	switch parts := strings.Split(name, "/"); len(parts) {
	case 1:
		// bare local name
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return Identity{}, fmt.Errorf("invalid topic name %q", clientName)
		}
		id.Tenant, id.Namespace = parts[0], parts[1]
		name = parts[2]
	default:
		return Identity{}, fmt.Errorf("invalid topic name %q", clientName)
	}

	if name == "" {
		return Identity{}, fmt.Errorf("invalid topic name %q", clientName)
	}

	id.Local = name
	if i := strings.LastIndex(name, PartitionSuffix); i > 0 {
		p, err := strconv.Atoi(name[i+len(PartitionSuffix):])
		if err == nil && p >= 0 {
			id.Local = name[:i]
			id.Partition = int32(p)
		}
	}

	return id, nil
}

// BackendName renders the fully qualified backend name, including the
// partition suffix when the identity references a single partition.
func (id Identity) BackendName() string {
	base := id.Tenant + "/" + id.Namespace + "/" + id.Local
	if id.Partition == NoPartition {
		return base
	}
	return base + PartitionSuffix + strconv.Itoa(int(id.Partition))
}

// ClientName returns the bare local name clients know the topic by. Every
// outward-facing topic field must go through this so clients never observe
// backend naming.
func (id Identity) ClientName() string {
	return id.Local
}

// WithPartition returns a copy of id referencing the given partition.
func (id Identity) WithPartition(p int32) Identity {
	id.Partition = p
	return id
}

// Short strips tenant and namespace, keeping only what a client sees.
func (id Identity) Short() Identity {
	return Identity{Local: id.Local, Partition: id.Partition}
}

// ReplaceIdentities rewrites the keys of m through the replacing index. Keys
// absent from the index are normalized with Short, so even an empty index
// yields client-visible keys. Values are carried over untouched.
func ReplaceIdentities[V any](m map[Identity]V, index map[Identity]Identity) map[Identity]V {
	out := make(map[Identity]V, len(m))
	for k, v := range m {
		if repl, ok := index[k]; ok {
			out[repl] = v
			continue
		}
		out[k.Short()] = v
	}
	return out
}
