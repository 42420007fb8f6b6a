// Package extract reverses the backup pipeline's compress/encrypt stages,
// turning a .tar[.gz|.zst|.lz4|.bz2][.aes] artifact back into a directory
// tree on disk.
//
// # Layer Stripping
//
// An artifact's name encodes the order its layers were applied in, and
// DetectType reads that name to decide what to strip next:
//
//	base.tar.gz.aes  -> decrypt -> base.tar.gz -> decompress -> base.tar -> untar
//
// Encryption is always the outermost layer (the pipeline compresses then
// encrypts), so extractLayers peels it first when present, then walks
// inward through any compression layer, then requires what's left be a
// plain tar stream. Each step writes its output alongside the input with
// that layer's extension removed (stripExtension) and is produced by a
// codec package's Decompress function or aescodec.Decrypt.
//
// # Usage
//
//	err := extract.File(backupFile, restoreDir, extract.Options{
//	        Passphrase: passphrase,
//	        Copy:       true,
//	})
//
// With Copy set, the source artifact is copied into destDir before any
// layer is stripped, so the catalogued backup file itself is never
// mutated.
//
// # Integration Points
//
//   - pkg/orchestrator: the Restore workflow does not call File; its
//     extract_layers stage copies a backup's files into the destination
//     as stored, without stripping any layer.
//   - pkg/codec/*codec: each compression codec contributes the
//     Decompress half of the round trip; pkg/codec/aescodec contributes
//     Decrypt.
package extract
