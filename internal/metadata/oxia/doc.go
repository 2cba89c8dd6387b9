// Package oxia implements the MetadataStore interface using Oxia.
//
// Oxia is a distributed metadata store. auditvault uses it when several
// daemons share one bucket: retention policies are versioned records and
// archival locks are ephemeral keys bound to the client session, so a
// crashed daemon releases its tenant locks when its session expires.
//
// Usage:
//
//	store, err := oxia.New(ctx, oxia.Config{
//	    ServiceAddress: "localhost:6648",
//	    Namespace:      "auditvault",
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	version, err := store.Put(ctx, keys.PolicyKey("tenant-a", "TRADE_EVENT"), data)
//	result, err := store.Get(ctx, keys.PolicyKey("tenant-a", "TRADE_EVENT"))
package oxia
