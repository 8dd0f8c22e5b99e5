package metrics

const (
	namespaceAirdrop = "airdrop"
)

const (
	subsystemImport = "import"
	subsystemTrie   = "trie"
	subsystemBlob   = "blob"
)
