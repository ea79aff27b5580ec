// Package estimatorv1 is the gRPC contract of the metage.v1.Estimator
// service, shared by metage-server and the metage CLI.
//
// There is no protobuf schema: messages are the JSON structs from package
// types, carried by Codec (content-subtype "json"). The service descriptor is
// declared by hand and attached with Register. Invoke is the matching
// client-side call and forces the JSON codec.
package estimatorv1
