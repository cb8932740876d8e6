// Package inventory tracks every MySensors node seen through the proxy.
//
// The Registry is wired into the inbound pipeline as a mysensors.Sink. Each
// decoded message updates the originating node:
//
//   - Presentation of child 255 records the library version and whether the
//     node is a repeater
//   - Presentation of any other child records its sensor type and description
//   - Set messages record the child's last value
//   - Internal battery level, sketch name and sketch version update the node
//
// Every node also carries its first/last seen time, the gateway that relayed
// its last message, and a message count.
//
// Nodes are cached in memory and written through to SQLite via Repository.
//
// Usage:
//
//	repo := inventory.NewSQLiteRepository(db.DB)
//	nodes := inventory.NewRegistry(repo)
//	if err := nodes.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	sink := mysensors.MultiSink{bridge, nodes}
package inventory
