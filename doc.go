// Package apriltag detects planar fiducial markers ("tags") in grayscale
// images: it locates each tag's quadrilateral border, decodes its bit
// pattern against one or more registered families, and reports the
// tag's family, id, confidence, and pixel-space geometry.
//
// The package also estimates a single detected tag's 3D pose from camera
// intrinsics and a physical tag size.
//
// Basic usage:
//
//	det := apriltag.NewDetector(apriltag.NewDetectorConfig())
//	det.AddFamily(family, 2)
//	detections := det.Detect(img)
//	for _, d := range detections {
//		fmt.Println(d.FamilyName, d.ID, d.Center)
//	}
//
// Families are loaded with [LoadFamily] and can be kept in a [Registry]
// created by [NewRegistry]. Offline code generation is not exposed by this
// package. Most callers only need [NewDetector], [Detector.AddFamily], and
// [Detector.Detect].
package apriltag
