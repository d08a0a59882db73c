package mcpserver

// AnnotationFormatContract describes what an annotation holds and how the
// exports encode it, for LLM consumers reading skylabel data.
const AnnotationFormatContract = `# Skylabel Annotation Format

Each annotation labels one aircraft photo.

## Fields

| field | meaning |
|---|---|
| assigned_filename | ` + "`" + `{aircraft_type_code}-{sequence}.{ext}` + "`" + `, sequence zero-padded to at least 4 digits, unique per type code and never reused |
| source_filename | the name the image had in the unlabeled pool |
| aircraft_type_code / aircraft_type_name | e.g. ` + "`" + `A320` + "`" + ` / ` + "`" + `Airbus A320` + "`" + ` |
| airline_code / airline_name | e.g. ` + "`" + `CES` + "`" + ` / ` + "`" + `China Eastern` + "`" + ` |
| clarity | 0 (unreadable) to 1 (sharp) |
| occlusion | 0 (fully visible) to 1 (hidden) |
| registration_text | the tail number as painted, e.g. ` + "`" + `B-6123` + "`" + ` |
| registration_box | normalized center_x, center_y, width, height of the registration, each in [0,1], width and height > 0 |

## CSV export

Columns, in order:

` + "```" + `
assigned_filename,aircraft_type_code,aircraft_type_name,airline_code,airline_name,clarity,occlusion,registration_text,registration_box
` + "```" + `

Rows are ordered by annotation id. ` + "`" + `registration_box` + "`" + ` is four space-separated numbers: ` + "`" + `cx cy w h` + "`" + `.

## YOLO export

A zip archive with ` + "`" + `classes.txt` + "`" + ` (one class: ` + "`" + `registration` + "`" + `) and one
` + "`" + `<stem>.txt` + "`" + ` per annotation holding a single line:

` + "```" + `
0 <center_x> <center_y> <width> <height>
` + "```" + `
`
