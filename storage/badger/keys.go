package badger

import (
	"fmt"

	"github.com/poiesic/graphrag/core"
)

// Key prefixes for different data types
const (
	kvPrefix        = "kv"
	vectorPrefix    = "vec"
	nodePrefix      = "grnode"
	edgePrefix      = "gredge"
	adjacencyPrefix = "gradj"
	docStatusPrefix = "docstat"
	statusIdxPrefix = "docstati"
)

// makeKVKey namespaces a caller-supplied key under the kv prefix so it
// cannot collide with graph or vector records sharing the database.
func makeKVKey(key []byte) []byte {
	buf := make([]byte, 0, len(kvPrefix)+1+len(key))
	buf = append(buf, kvPrefix...)
	buf = append(buf, ':')
	return append(buf, key...)
}

// makeVectorKey generates a key for a vector entry by ID.
func makeVectorKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", vectorPrefix, id))
}

// makeNodeKey generates a key for a graph node by canonical name.
func makeNodeKey(name string) []byte {
	return []byte(nodePrefix + ":" + name)
}

// makeEdgeKey generates a key for a graph edge by canonical pair key.
func makeEdgeKey(pairKey string) []byte {
	return []byte(edgePrefix + ":" + pairKey)
}

// makeAdjacencyKey generates a composite key linking a node to one of its
// edges. Format: prefix:node:neighbor. The value holds the edge pair key.
func makeAdjacencyKey(node, neighbor string) []byte {
	return []byte(adjacencyPrefix + ":" + node + ":" + neighbor)
}

// makeAdjacencyScanPrefix generates the scan prefix for all edges of a node.
func makeAdjacencyScanPrefix(node string) []byte {
	return []byte(adjacencyPrefix + ":" + node + ":")
}

// makeDocStatusKey generates a key for a document record by ID.
func makeDocStatusKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", docStatusPrefix, id))
}

// makeStatusIndexKey generates a composite key for the status index.
// Format: prefix:status:id
func makeStatusIndexKey(status core.DocStatus, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d:%d", statusIdxPrefix, status, id))
}

// makeStatusIndexScanPrefix generates the scan prefix for one status.
func makeStatusIndexScanPrefix(status core.DocStatus) []byte {
	return []byte(fmt.Sprintf("%s:%d:", statusIdxPrefix, status))
}
