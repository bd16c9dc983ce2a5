/*
The sync package implements packsync's install algorithm. It brings a local
pack folder in line with a remote pack, downloading only what changed.

Every run goes through the same passes, in order:
1) Invalidation -- Cached files that are missing from disk are marked for
   download, regardless of whether they changed remotely.
2) Early exit -- If the pack descriptor (and then the index) hash the same as
   in the last run, and nothing was invalidated, the run stops.
3) Diff -- Index entries are compared with the manifest by hash. Entries that
   haven't changed are skipped. Metafiles are compared by the hash of their
   linked descriptor, so unchanged metafiles are never fetched.
4) Cleanup -- Files that were removed from the index, and optional files
   that were deselected, are deleted.
5) Options -- If the pack gained optional files, the user is asked which
   ones to install.
6) Download -- The remaining files are downloaded by a pool of workers.
   Results are folded into the manifest by a single loop, so the manifest is
   never accessed concurrently.

The manifest is saved once, after all downloads complete. If any file failed,
the pack and index hashes aren't saved so that the next run retries it.
*/
package sync
