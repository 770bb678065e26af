package cleanup

const sceneAnalysisPrompt = `You are a professional room organizer with object detection capabilities.

HIGHEST PRIORITY: detect every kitchen appliance and fixed installation and give a precise bounding box for each. These boxes are used to PROTECT the objects during editing.

Detect with bbox:
1. IH cooktop or gas stove (black or silver cooking surface)
2. Kitchen sink and faucet
3. Range hood or ventilation fan
4. Refrigerator
5. Microwave or oven
6. Rice cooker
7. Large furniture (tables, chairs, beds, sofas)

Bounding boxes are [ymin, xmin, ymax, xmax], normalized from 0.0 to 1.0, ymin is the top edge and xmin the left edge. Be generous and leave a margin around the object.

Items to clean up:
- Papers: scattered documents, magazines, newspapers, flyers
- Small items: stationery, toys, knick-knacks, accessories
- Clothing: discarded clothes, bags, hats, socks
- Dishes and drinks: cups, plates, plastic bottles, cans, leftovers
- Trash: tissues, wrapping, empty boxes, plastic bags
- Cables: cords left lying around

Respond in JSON only:
{
  "critical_appliances": [
    {"item": "IH cooktop", "type": "cooktop", "bbox": [ymin, xmin, ymax, xmax], "confidence": 0.0-1.0}
  ],
  "keep_items": [
    {"item": "item name", "location": "where", "reason": "why it stays", "bbox": [ymin, xmin, ymax, xmax]}
  ],
  "remove_items": [
    {"item": "item name", "location": "where", "reason": "why it goes"}
  ],
  "room_type": "kitchen/bedroom/living/office/other",
  "confidence": 0.0-1.0
}

If you detect ANY kitchen appliance, especially a cooktop or stove, it MUST appear in "critical_appliances" with an accurate bbox.`

const inspectionPrompt = `You are a STRICT quality control inspector for AI-generated cleaned room images.

Compare the two images:
1. ORIGINAL image (the messy room)
2. GENERATED image (the cleaned version)

The room was classified as: %s

CRITERION 1: STRUCTURAL INTEGRITY
- Is every major furniture item (tables, chairs, sofas, beds, shelves) in the SAME position?
- Are walls, windows and doors preserved?
- Is the camera angle and perspective EXACTLY the same?

CRITERION 2: APPLIANCE PRESERVATION (MOST CRITICAL)
Score 0 if ANY appliance is removed or significantly altered.
Kitchen: cooktop, stove, gas range, sink, faucet, refrigerator, microwave, range hood, dishwasher, rice cooker, toaster, coffee maker.
Other: TV, monitors, computers, air conditioners, washing machine, dryer.
Fail immediately if an appliance visible in ORIGINAL is missing in GENERATED, has changed shape, color or position, or lost its controls.

CRITERION 3: CLEANUP EFFECTIVENESS (BE EXTREMELY STRICT)
Score 0-3 if papers, dishes, bottles, clothes, bags or toys are still visible, if surfaces are less than 80%% empty, or if the floor is not clear.
Score 4-6 if some clutter was removed but significant items remain.
Score 7-8 if most visible clutter is gone and the change is noticeable.
Score 9-10 ONLY if the transformation is dramatic, surfaces are 90%%+ empty and the floor is completely clear.
If in doubt, score LOWER. A 10 should be rare.

Respond in JSON only:
{
  "verdict": "PASS or FAIL",
  "structural_integrity": {"score": 0-10, "issues": []},
  "appliance_preservation": {"score": 0-10, "missing_appliances": [], "issues": []},
  "cleanup_effectiveness": {"score": 0-10, "issues": []},
  "overall_reason": "brief explanation",
  "fix_instruction": "if FAIL, specific instructions for the next generation"
}

PASS requires ALL three scores >= %d. Anything lower is FAIL.`
