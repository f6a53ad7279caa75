// Package atproto streams records out of a user's repository on their
// personal data server.
//
// The account is resolved lazily, on the first pull of a stream, through an
// identity.Resolver. Record pages are then requested from the account's PDS
// with com.atproto.repo.listRecords until the PDS stops returning a cursor.
//
//	c := atproto.NewClient(httpClient, resolver)
//	blocks := c.Blocks("alice.bsky.social")
//	for blocks.Next(ctx) {
//		for _, did := range blocks.Batch() {
//			fmt.Println(did)
//		}
//	}
//	if err := blocks.Err(); err != nil {
//		return err
//	}
package atproto
